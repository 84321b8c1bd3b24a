package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropy1208/halsaveda-copilot/internal/answer"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

type fakeAnswerer struct {
	result *answer.Result
	err    error
	calls  int
	gotQ   string
	gotK   int
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, topK int) (*answer.Result, error) {
	f.calls++
	f.gotQ = question
	f.gotK = topK
	return f.result, f.err
}

type fakeCounter struct {
	n   int64
	err error
}

func (f *fakeCounter) Count(context.Context) (int64, error) { return f.n, f.err }

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestChat_Success(t *testing.T) {
	answerer := &fakeAnswerer{result: &answer.Result{
		Answer: "Rest and drink fluids. [Source 1]",
		Sources: []answer.Source{
			{Title: "Förkylning", URL: "https://1177.se/forkylning", Score: 0.87},
		},
	}}
	s := newTestServer(t, ServerConfig{Answerer: answerer})

	w := postChat(t, s, `{"question": "What should I do for a cold?", "top_k": 3}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Rest and drink fluids. [Source 1]", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "Förkylning", resp.Sources[0].Title)
	assert.InDelta(t, 0.87, resp.Sources[0].Score, 1e-9)

	assert.Equal(t, "What should I do for a cold?", answerer.gotQ)
	assert.Equal(t, 3, answerer.gotK)
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty question", `{"question": ""}`},
		{"whitespace question", `{"question": "   "}`},
		{"negative top_k", `{"question": "q", "top_k": -1}`},
		{"malformed json", `{"question": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &fakeAnswerer{result: &answer.Result{Answer: "x"}}
			s := newTestServer(t, ServerConfig{Answerer: answerer})

			w := postChat(t, s, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, answerer.calls, "pipeline must not run on invalid input")
		})
	}
}

func TestChat_UpstreamFailureIs502(t *testing.T) {
	answerer := &fakeAnswerer{err: answer.ErrGeneration}
	s := newTestServer(t, ServerConfig{Answerer: answerer})

	w := postChat(t, s, `{"question": "q"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "upstream_error", resp.Error)
}

func TestChat_NilSourcesRenderAsEmptyArray(t *testing.T) {
	answerer := &fakeAnswerer{result: &answer.Result{Answer: answer.NoSourcesAnswer}}
	s := newTestServer(t, ServerConfig{Answerer: answerer})

	w := postChat(t, s, `{"question": "q"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
}

func TestStats_CountsAnswers(t *testing.T) {
	answerer := &fakeAnswerer{result: &answer.Result{Answer: "ok", Sources: []answer.Source{}}}
	s := newTestServer(t, ServerConfig{
		Answerer:       answerer,
		Counter:        &fakeCounter{n: 128},
		EmbeddingModel: "text-embedding-004",
		ChatModel:      "googleai/gemini-2.5-flash",
	})

	postChat(t, s, `{"question": "one"}`)
	postChat(t, s, `{"question": "two"}`)
	// Failures must not count.
	answerer.err = answer.ErrRetrieval
	postChat(t, s, `{"question": "three"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.QuestionsAnswered)
	assert.Equal(t, int64(128), stats.Chunks)
	assert.Equal(t, "text-embedding-004", stats.EmbeddingModel)
	assert.Equal(t, "googleai/gemini-2.5-flash", stats.ChatModel)
}

func TestStats_CountFailureIsNonCritical(t *testing.T) {
	s := newTestServer(t, ServerConfig{
		Answerer: &fakeAnswerer{result: &answer.Result{Answer: "ok"}},
		Counter:  &fakeCounter{err: errors.New("db down")},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.Chunks)
}

func TestHealth_Liveness(t *testing.T) {
	s := newTestServer(t, ServerConfig{Answerer: &fakeAnswerer{result: &answer.Result{Answer: "x"}}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestHealth_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		pinger   Pinger
		wantCode int
	}{
		{"ready", &fakePinger{}, http.StatusOK},
		{"index down", &fakePinger{err: errors.New("conn refused")}, http.StatusServiceUnavailable},
		{"no pinger", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, ServerConfig{
				Answerer: &fakeAnswerer{result: &answer.Result{Answer: "x"}},
				Pinger:   tt.pinger,
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	answerer := &fakeAnswerer{result: &answer.Result{Answer: "ok", Sources: []answer.Source{}}}
	s := newTestServer(t, ServerConfig{
		Answerer:  answerer,
		RateRPS:   0.001, // effectively one request per burst window
		RateBurst: 2,
	})

	codes := make([]int, 0, 3)
	for range 3 {
		w := postChat(t, s, `{"question": "q"}`)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Probes bypass the limiter.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	h := recoveryMiddleware(log.NewNop())(panicky)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err, "missing answerer")

	_, err = NewServer(ServerConfig{Answerer: &fakeAnswerer{}})
	assert.Error(t, err, "missing logger")
}
