// Package config provides application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (HALSAVEDA_* and DATABASE_URL)
//  2. Config file (~/.halsaveda/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - AI: provider, chat model, embedder model
//   - Retrieval: top_k, Postgres/pgvector connection (storage.go)
//   - Server: listen address, rate limit
//   - Client: answer service URL, request timeout, retry policy
//   - Otel: optional OTLP trace export (observability)
//
// Sensitive values (the Postgres password) are masked in MarshalJSON and
// String so a logged Config never leaks credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
)

// Retrieval defaults.
const (
	// DefaultEmbedderModel produces 768-dimension vectors, matching the
	// chunks table schema in db/migrations.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 3
)

// Client-side retry defaults: one attempt plus MaxRetries retries, each
// bounded by RequestTimeout, separated by a fixed RetryBackoff.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBackoff   = time.Second
)

// OtelConfig configures optional OTLP trace export. Empty endpoint disables
// tracing entirely.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "googleai" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"` // only used when provider is "ollama"

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Answer service (serve mode)
	ServerAddr string  `mapstructure:"server_addr" json:"server_addr"`
	RateRPS    float64 `mapstructure:"rate_rps" json:"rate_rps"`
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`

	// Chat client (chat and ask modes)
	ServerURL      string        `mapstructure:"server_url" json:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`

	// Observability
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".halsaveda")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("top_k", DefaultTopK)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "halsaveda")
	viper.SetDefault("postgres_password", "halsaveda_dev_password")
	viper.SetDefault("postgres_db_name", "halsaveda")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("server_addr", "127.0.0.1:8000")
	viper.SetDefault("rate_rps", 5.0)
	viper.SetDefault("rate_burst", 10)

	// Client defaults
	viper.SetDefault("server_url", "http://127.0.0.1:8000")
	viper.SetDefault("request_timeout", DefaultRequestTimeout)
	viper.SetDefault("max_retries", DefaultMaxRetries)
	viper.SetDefault("retry_backoff", DefaultRetryBackoff)

	// Otel defaults (disabled until an endpoint is configured)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.service_name", "halsaveda-copilot")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds runtime overrides explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit plugins,
// not via Viper.
func bindEnvVariables() {
	// Binding hardcoded keys cannot fail; a panic here is a programming bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "HALSAVEDA_PROVIDER")
	mustBind("model_name", "HALSAVEDA_MODEL_NAME")
	mustBind("embedder_model", "HALSAVEDA_EMBEDDER_MODEL")
	mustBind("ollama_host", "HALSAVEDA_OLLAMA_HOST")
	mustBind("server_addr", "HALSAVEDA_SERVER_ADDR")
	mustBind("server_url", "HALSAVEDA_SERVER_URL")
	mustBind("otel.endpoint", "HALSAVEDA_OTLP_ENDPOINT")
}

// maskedValue replaces sensitive data in logged configuration. Full-width
// blocks avoid accidental substring matches against real passwords.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// A ModelName already containing "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}
