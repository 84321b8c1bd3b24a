package genai

import (
	"context"
	"testing"

	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, log.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNew_NilLogger(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderGoogleAI}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
