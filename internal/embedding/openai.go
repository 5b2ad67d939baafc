package embedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder converts text into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = (*embeddings.EmbedderImpl)(nil)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// NewOpenAI creates an embedder backed by any OpenAI-compatible
// /embeddings endpoint.
func NewOpenAI(cfg Config) (*embeddings.EmbedderImpl, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing embedding API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: t}),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
}
