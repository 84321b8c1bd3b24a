package api

import (
	"net/http"
	"sync/atomic"

	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// StatsResponse is the GET /api/stats body.
type StatsResponse struct {
	QuestionsAnswered int64  `json:"questions_answered"`
	Chunks            int64  `json:"chunks"`
	EmbeddingModel    string `json:"embedding_model"`
	ChatModel         string `json:"chat_model"`
}

// StatsHandler serves service telemetry. The answered-question counter is
// process-local and resets on restart.
type StatsHandler struct {
	counter        Counter
	embeddingModel string
	chatModel      string
	logger         log.Logger

	answered atomic.Int64
}

// NewStatsHandler creates a stats handler. counter may be nil when no
// index is wired; the chunk count then reports zero.
func NewStatsHandler(counter Counter, embeddingModel, chatModel string, logger log.Logger) *StatsHandler {
	return &StatsHandler{
		counter:        counter,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		logger:         logger,
	}
}

// RegisterRoutes registers stats routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", h.handleStats)
}

// recordAnswer bumps the answered-question counter.
func (h *StatsHandler) recordAnswer() {
	h.answered.Add(1)
}

func (h *StatsHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	var chunks int64
	if h.counter != nil {
		n, err := h.counter.Count(r.Context())
		if err != nil {
			// Telemetry is non-critical; report what we have.
			h.logger.Warn("chunk count failed", "error", err)
		} else {
			chunks = n
		}
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		QuestionsAnswered: h.answered.Load(),
		Chunks:            chunks,
		EmbeddingModel:    h.embeddingModel,
		ChatModel:         h.chatModel,
	}, h.logger)
}
