package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinel errors for configuration validation. Callers can match them with
// errors.Is after Load wraps them with context.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the chat model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unrecognized sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerURL indicates the answer service URL does not parse.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrInvalidTimeout indicates a non-positive request timeout.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidRetries indicates a retry count out of range.
	ErrInvalidRetries = errors.New("invalid max retries")

	// ErrInvalidBackoff indicates a negative retry backoff.
	ErrInvalidBackoff = errors.New("invalid retry backoff")

	// ErrInvalidRateLimit indicates a non-positive rate limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// MaxTopK bounds retrieval depth; more chunks than this bloat the prompt
// without improving answers.
const MaxTopK = 20

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and fails fast with a sentinel error
// wrapped with detail.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGoogleAI, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected %q, %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOllama, ProviderOpenAI)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (expected 1-%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.RequestTimeout)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("%w: %d (expected 0-10)", ErrInvalidRetries, c.MaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBackoff, c.RetryBackoff)
	}

	if c.RateRPS <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("%w: rps=%v burst=%d", ErrInvalidRateLimit, c.RateRPS, c.RateBurst)
	}

	return nil
}
