// Package answer produces grounded, cited answers for user questions.
//
// The pipeline is embed, retrieve, generate: the question is embedded, the
// vector index returns the most similar knowledge chunks, and the language
// model answers from those chunks only. When retrieval comes back empty the
// service answers without calling the model at all, so an answer can never
// be generated from an empty context.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entropy1208/halsaveda-copilot/internal/index"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific amount.
const DefaultTopK = 3

// NoSourcesAnswer is returned when retrieval finds nothing relevant. The
// language model is not consulted in that case.
const NoSourcesAnswer = "I couldn't find any relevant information in my knowledge base for that question. " +
	"Try rephrasing it, or ask about symptoms and care advice covered by 1177.se."

// Pipeline stage failures. Each wraps the upstream cause.
var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmbedding     = errors.New("embedding failed")
	ErrRetrieval     = errors.New("retrieval failed")
	ErrGeneration    = errors.New("generation failed")
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index returns the chunks most similar to a query vector, best first.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int) ([]index.Match, error)
}

// Generator produces a completion for a system and user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Source attributes part of an answer to a knowledge base document.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Result is a generated answer with its sources in retrieval order, so
// citation marker [N] in the answer text refers to Sources[N-1].
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Service orchestrates the answer pipeline.
type Service struct {
	embedder  Embedder
	index     Index
	generator Generator
	logger    log.Logger
}

// New wires the pipeline stages together.
func New(embedder Embedder, idx Index, generator Generator, logger log.Logger) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		embedder:  embedder,
		index:     idx,
		generator: generator,
		logger:    logger,
	}, nil
}

// Answer runs the full pipeline for one question. topK values below 1 fall
// back to DefaultTopK. Sources come back in descending similarity order; an
// empty retrieval yields NoSourcesAnswer with an empty (non-nil) source list.
func (s *Service) Answer(ctx context.Context, question string, topK int) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if topK < 1 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", ErrEmbedding)
	}

	matches, err := s.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	if len(matches) == 0 {
		s.logger.Info("no relevant chunks found", "question_len", len(question))
		return &Result{Answer: NoSourcesAnswer, Sources: []Source{}}, nil
	}

	s.logger.Debug("retrieved context chunks", "count", len(matches), "top_k", topK)

	completion, err := s.generator.Complete(ctx, systemPrompt, buildPrompt(question, matches))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(completion) == "" {
		return nil, fmt.Errorf("%w: model returned an empty completion", ErrGeneration)
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			Title: m.Title,
			URL:   m.URL,
			Score: clampScore(m.Score),
		}
	}

	return &Result{Answer: completion, Sources: sources}, nil
}

// clampScore keeps similarity scores within [0, 1]. Floating point noise in
// the cosine computation can push exact matches fractionally above 1.
func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
