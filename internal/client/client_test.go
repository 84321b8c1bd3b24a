package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(baseURL, 2*time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestAsk_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Question != "What should I do for a cold?" || req.TopK != 3 {
			t.Errorf("request = %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{
			Answer: "Rest and drink fluids. [1]",
			Sources: []Source{
				{Title: "Förkylning", URL: "https://1177.se/forkylning", Score: 0.87},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	resp, err := c.Ask(context.Background(), Request{Question: "What should I do for a cold?", TopK: 3})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer != "Rest and drink fluids. [1]" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Förkylning" {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestAsk_NonOKStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusTooManyRequests} {
		t.Run(fmt.Sprintf("%d", code), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", code)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)

			_, err := c.Ask(context.Background(), Request{Question: "q"})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if statusErr.Code != code {
				t.Errorf("code = %d, want %d", statusErr.Code, code)
			}
		})
	}
}

func TestAsk_TimeoutPerAttempt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, 50*time.Millisecond, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = c.Ask(context.Background(), Request{Question: "q"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Ask took %v, timeout not enforced", elapsed)
	}
	if got := Classify(err); got != FailureTimeout {
		t.Errorf("Classify = %v, want FailureTimeout", got)
	}
}

func TestAsk_ConnectionRefused(t *testing.T) {
	t.Parallel()

	// Reserve a port, then close the listener so nothing accepts.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := newTestClient(t, "http://"+addr)

	_, err = c.Ask(context.Background(), Request{Question: "q"})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if got := Classify(err); got != FailureConnect {
		t.Errorf("Classify = %v, want FailureConnect", got)
	}
}

func TestStats_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/stats" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Stats{
			QuestionsAnswered: 42,
			Chunks:            128,
			EmbeddingModel:    "text-embedding-004",
			ChatModel:         "googleai/gemini-2.5-flash",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.QuestionsAnswered != 42 || stats.Chunks != 128 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	logger := log.NewNop()

	if _, err := New("", time.Second, logger); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New("http://x", 0, logger); err == nil {
		t.Error("expected error for zero timeout")
	}
	if _, err := New("http://x", time.Second, nil); err == nil {
		t.Error("expected error for nil logger")
	}

	c, err := New("http://x/", time.Second, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.baseURL != "http://x" {
		t.Errorf("baseURL = %q, trailing slash not trimmed", c.baseURL)
	}
}

func TestFixedPolicy(t *testing.T) {
	t.Parallel()

	policy := FixedPolicy(2)
	err := errors.New("boom")

	if policy(1, err) != Retry {
		t.Error("attempt 1 should retry")
	}
	if policy(2, err) != Retry {
		t.Error("attempt 2 should retry")
	}
	if policy(3, err) != GiveUp {
		t.Error("attempt 3 should give up")
	}
}

func TestFixedPolicy_ZeroRetries(t *testing.T) {
	t.Parallel()

	policy := FixedPolicy(0)
	if policy(1, errors.New("boom")) != GiveUp {
		t.Error("zero-retry policy should give up on first failure")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Failure
	}{
		{"nil", nil, FailureUnknown},
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"wrapped deadline", fmt.Errorf("send request: %w", context.DeadlineExceeded), FailureTimeout},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), FailureConnect},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), FailureConnect},
		{"status 502", &StatusError{Code: 502}, FailureServer},
		{"status 400", fmt.Errorf("ask: %w", &StatusError{Code: 400}), FailureServer},
		{"other", errors.New("weird"), FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()

	err := &StatusError{Code: 502}
	want := "answer service returned 502 Bad Gateway"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
