package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entropy1208/halsaveda-copilot/internal/api"
	"github.com/entropy1208/halsaveda-copilot/internal/app"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the answer service",
	Long: `Run the HTTP answer service backing the chat client.

Endpoints: POST /api/chat, GET /api/stats, GET /health, GET /ready.`,
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := api.NewServer(api.ServerConfig{
		Answerer:       a.Answer,
		Counter:        a.Index,
		Pinger:         a.Index,
		Logger:         logger,
		EmbeddingModel: cfg.EmbedderModel,
		ChatModel:      cfg.FullModelName(),
		RateRPS:        cfg.RateRPS,
		RateBurst:      cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return server.Run(ctx, cfg.ServerAddr)
}
