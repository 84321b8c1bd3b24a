package index

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process chunk index ranking by cosine similarity.
// It mirrors Store's contract and serves as the deterministic stand-in for
// tests. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	chunks []Chunk
	byID   map[string]int
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Upsert inserts a chunk or replaces an existing one with the same ID.
func (m *Memory) Upsert(_ context.Context, c Chunk) error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}
	if len(c.Embedding) == 0 {
		return errors.New("chunk has no embedding")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.byID[c.ID]; ok {
		m.chunks[i] = c
		return nil
	}
	m.byID[c.ID] = len(m.chunks)
	m.chunks = append(m.chunks, c)
	return nil
}

// Search returns up to topK chunks ranked by descending cosine similarity.
// Ties keep insertion order (the index's native ordering).
func (m *Memory) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.chunks))
	for _, c := range m.chunks {
		matches = append(matches, Match{
			Content: c.Content,
			Title:   c.Title,
			URL:     c.URL,
			Score:   cosineSimilarity(vector, c.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored chunks.
func (m *Memory) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.chunks)), nil
}

// Ping always succeeds; Memory has no external dependency.
func (m *Memory) Ping(context.Context) error { return nil }

// cosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0 rather than erroring; a
// malformed stored vector should not fail the whole search.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
