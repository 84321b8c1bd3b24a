// Package index provides vector similarity search over the 1177.se chunk
// corpus. The production store is PostgreSQL with pgvector (pgvector.go);
// Memory is a deterministic in-process store used in tests and offline
// development.
//
// Both stores rank by cosine similarity, return at most topK matches in
// descending score order, and return all available chunks when topK exceeds
// the corpus size. Ties keep the store's native ordering; no extra tie-break
// is imposed.
package index

// Chunk is one bounded span of source text with provenance metadata and its
// embedding, as produced by the out-of-band ingestion pipeline.
type Chunk struct {
	ID        string
	Title     string
	URL       string
	Content   string
	Embedding []float32
}

// Match is one retrieval result: the chunk text, its provenance, and the
// cosine similarity score against the query vector.
type Match struct {
	Content string
	Title   string
	URL     string
	Score   float64
}
