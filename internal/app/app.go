// Package app wires the answer service together: tracing, database,
// Genkit, the vector index and the answer pipeline.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entropy1208/halsaveda-copilot/internal/answer"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/genai"
	"github.com/entropy1208/halsaveda-copilot/internal/index"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// App is the server-side application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	GenAI  *genai.Client
	DBPool *pgxpool.Pool
	Index  *index.Store
	Answer *answer.Service

	otelCleanup func()
	dbCleanup   func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
