package embedding

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel generates embeddings through an OpenAI-compatible embeddings
// API.
type OpenAIModel struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// OpenAIOption configures an OpenAIModel.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
}

// WithOpenAIAPIKey sets the API key. Defaults to $OPENAI_API_KEY.
func WithOpenAIAPIKey(apiKey string) OpenAIOption {
	return func(c *openAIConfig) {
		c.apiKey = apiKey
	}
}

// WithOpenAIBaseURL points the client at a compatible server.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = baseURL
	}
}

// WithOpenAIModel sets the embedding model name.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

// WithOpenAIDimensions requests a specific output dimensionality.
func WithOpenAIDimensions(dimensions int) OpenAIOption {
	return func(c *openAIConfig) {
		c.dimensions = dimensions
	}
}

// NewOpenAIModel creates an OpenAI-backed embedding model.
func NewOpenAIModel(opts ...OpenAIOption) *OpenAIModel {
	cfg := openAIConfig{
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		model:      string(openai.LargeEmbedding3),
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultConfig(cfg.apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &OpenAIModel{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.model),
		dimensions: cfg.dimensions,
	}
}

// EmbedDocuments generates one embedding per input text.
func (m *OpenAIModel) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      m.model,
		Dimensions: m.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned embedding with index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		embeddings[item.Index] = Normalize(vec)
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query.
func (m *OpenAIModel) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := m.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

var _ Model = (*OpenAIModel)(nil)
