// Package api exposes the answer service over HTTP.
//
// Endpoints:
//
//	POST /api/chat   answer one question with cited sources
//	GET  /api/stats  service telemetry (non-critical)
//	GET  /health     liveness probe
//	GET  /ready      readiness probe (pings the vector index)
//
// Middleware order: recovery, logging, rate limit.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/entropy1208/halsaveda-copilot/internal/answer"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to stop slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because one request spans embedding,
	// retrieval and generation upstream calls.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive limit between requests.
	IdleTimeout = 120 * time.Second
)

// Answerer produces an answer for one question. *answer.Service satisfies
// it.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) (*answer.Result, error)
}

// Counter reports how many chunks the index holds. The pgvector store
// satisfies it.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Pinger checks dependency health. The pgvector store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig carries the server's wiring and limits.
type ServerConfig struct {
	Answerer Answerer
	Counter  Counter
	Pinger   Pinger
	Logger   log.Logger

	// Models reported by /api/stats.
	EmbeddingModel string
	ChatModel      string

	// Rate limit for /api/chat. RPS of 0 disables limiting.
	RateRPS   float64
	RateBurst int
}

// Server is the answer service's HTTP front end.
type Server struct {
	mux     *http.ServeMux
	limiter *rate.Limiter
	logger  log.Logger

	chat   *ChatHandler
	stats  *StatsHandler
	health *HealthHandler
}

// NewServer registers all routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	stats := NewStatsHandler(cfg.Counter, cfg.EmbeddingModel, cfg.ChatModel, cfg.Logger)

	s := &Server{
		mux:    http.NewServeMux(),
		logger: cfg.Logger,
		chat:   NewChatHandler(cfg.Answerer, stats, cfg.Logger),
		stats:  stats,
		health: NewHealthHandler(cfg.Pinger, cfg.Logger),
	}
	if cfg.RateRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}

	s.chat.RegisterRoutes(s.mux)
	s.stats.RegisterRoutes(s.mux)
	s.health.RegisterRoutes(s.mux)

	return s, nil
}

// Handler returns the mux with middleware applied.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter),
	)
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
