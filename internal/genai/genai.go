// Package genai wraps Genkit behind the two narrow operations the answer
// pipeline needs: embedding text and completing a prompt.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// Client holds an initialized Genkit instance plus the embedder registered
// by the configured provider plugin.
type Client struct {
	genkit    *genkit.Genkit
	embedder  ai.Embedder
	modelName string
	logger    log.Logger
}

// New initializes Genkit with the configured AI provider.
//
// API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read by the plugins
// themselves from the environment. Ollama needs no key, only a reachable
// server address.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	var (
		g        *genkit.Genkit
		embedder ai.Embedder
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; model and embedder must be registered.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		embedder = genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized genkit with googleai provider", "model", cfg.ModelName)
	}

	if embedder == nil {
		return nil, fmt.Errorf("no embedder registered for %q (provider %s)", cfg.EmbedderModel, cfg.Provider)
	}

	return &Client{
		genkit:    g,
		embedder:  embedder,
		modelName: cfg.FullModelName(),
		logger:    logger,
	}, nil
}

// Embed returns the embedding vector for one piece of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// Complete generates a completion for the given system and user prompts
// using the configured chat model.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty completion")
	}
	return text, nil
}

// Genkit exposes the underlying instance for packages that register test
// doubles against it.
func (c *Client) Genkit() *genkit.Genkit { return c.genkit }
