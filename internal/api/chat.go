package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/entropy1208/halsaveda-copilot/internal/answer"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// MaxQuestionLen caps question length to keep prompts and embedding calls
// bounded.
const MaxQuestionLen = 2000

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// ChatResponse is the POST /api/chat success body. Sources is always
// present, empty when nothing relevant was found.
type ChatResponse struct {
	Answer  string          `json:"answer"`
	Sources []answer.Source `json:"sources"`
}

// ChatHandler answers questions.
type ChatHandler struct {
	answerer Answerer
	stats    *StatsHandler
	logger   log.Logger
}

// NewChatHandler creates a chat handler. stats is bumped on every
// successful answer.
func NewChatHandler(answerer Answerer, stats *StatsHandler, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, stats: stats, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// handleChat validates the request, runs the answer pipeline and maps
// pipeline failures to 502. Validation failures are 400 and never reach
// the pipeline.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question must not be empty", h.logger)
		return
	}
	if len(question) > MaxQuestionLen {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is too long", h.logger)
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "top_k must be positive", h.logger)
		return
	}

	result, err := h.answerer.Answer(r.Context(), question, req.TopK)
	if err != nil {
		// ErrEmptyQuestion cannot happen past validation; everything else
		// is an upstream failure the client retries against.
		if errors.Is(err, answer.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "invalid_request", "question must not be empty", h.logger)
			return
		}
		h.logger.Error("answer pipeline failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to answer the question", h.logger)
		return
	}

	h.stats.recordAnswer()

	sources := result.Sources
	if sources == nil {
		sources = []answer.Source{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{Answer: result.Answer, Sources: sources}, h.logger)
}
