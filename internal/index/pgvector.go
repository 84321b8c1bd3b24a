package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// VectorDimension is the embedding width stored in the chunks table.
// It must match the configured embedder model; see db/migrations.
const VectorDimension = 768

// searchQuery orders by cosine distance (<=>) and reports similarity as
// 1 - distance. Postgres decides tie order; we do not impose one.
const searchQuery = `
SELECT content, title, url, 1 - (embedding <=> $1) AS score
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

const upsertQuery = `
INSERT INTO chunks (id, title, url, content, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    url = EXCLUDED.url,
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding`

// Store is a pgvector-backed chunk index.
// Store is safe for concurrent use; each call is an independent query on the
// shared pool.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a Store on an existing connection pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("index.NewStore: pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Search returns the topK chunks nearest to vector by cosine similarity,
// descending. Fewer rows than topK means the corpus is smaller than topK.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}

	rows, err := s.pool.Query(ctx, searchQuery, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Content, &m.Title, &m.URL, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}

	s.logger.Debug("vector search complete", "top_k", topK, "matches", len(matches))
	return matches, nil
}

// Upsert inserts a chunk or replaces an existing one with the same ID.
func (s *Store) Upsert(ctx context.Context, c Chunk) error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %q has no embedding", c.ID)
	}

	_, err := s.pool.Exec(ctx, upsertQuery,
		c.ID, c.Title, c.URL, c.Content, pgvector.NewVector(c.Embedding))
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", c.ID, err)
	}
	return nil
}

// Count returns the number of chunks in the index.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Ping reports whether the underlying database is reachable. Used by the
// readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
