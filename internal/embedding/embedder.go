// Package embedding provides text embedding generation with multiple backend
// support via langchaingo.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder is the capability the indexing and search paths consume.
type Embedder interface {
	// EmbedTexts generates embedding vectors for a batch of texts,
	// one vector per input in the same order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model name.
	Model() string

	// Dimension returns the embedding vector dimension. Must match the
	// vector collection's configured size.
	Dimension() int
}

// Provider identifies the embedding backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Config holds configuration for constructing an Embedder. The provider is
// validated once here, never re-dispatched per call.
type Config struct {
	Provider  Provider
	Model     string
	Dimension int

	// Ollama-specific
	OllamaHost string

	// OpenAI-specific
	OpenAIAPIKey string
}

// Client wraps a langchaingo embedder with dimension validation.
type Client struct {
	model     embeddings.Embedder
	dimension int
	modelName string
}

var _ Embedder = (*Client)(nil)

// New creates an embedder for the configured provider.
func New(cfg Config) (*Client, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	var model embeddings.Embedder

	switch cfg.Provider {
	case ProviderOllama, "":
		llm, err := ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires API key")
		}
		llm, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return &Client{
		model:     model,
		dimension: cfg.Dimension,
		modelName: cfg.Model,
	}, nil
}

// EmbedTexts generates embeddings for a batch of texts.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := c.model.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", c.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != c.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d (model: %s)", i, len(v), c.dimension, c.modelName)
		}
	}

	slog.Debug("embedding complete", "model", c.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds())
	return vectors, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.modelName
}

// Dimension returns the expected embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}
