package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// OllamaDefaultURL is the default Ollama API endpoint.
const OllamaDefaultURL = "http://localhost:11434"

// OllamaDefaultModel is a 1024-dimensional embedding model.
const OllamaDefaultModel = "mxbai-embed-large"

// OllamaModel generates embeddings through a local Ollama server.
type OllamaModel struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption configures an OllamaModel.
type OllamaOption func(*OllamaModel)

// WithOllamaBaseURL sets the server URL. Defaults to $OLLAMA_HOST, then
// OllamaDefaultURL.
func WithOllamaBaseURL(baseURL string) OllamaOption {
	return func(m *OllamaModel) {
		m.baseURL = baseURL
	}
}

// WithOllamaModel sets the embedding model name.
func WithOllamaModel(model string) OllamaOption {
	return func(m *OllamaModel) {
		m.model = model
	}
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(m *OllamaModel) {
		m.httpClient = client
	}
}

// NewOllamaModel creates an Ollama-backed embedding model.
func NewOllamaModel(opts ...OllamaOption) *OllamaModel {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = OllamaDefaultURL
	}

	m := &OllamaModel{
		baseURL:    baseURL,
		model:      OllamaDefaultModel,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedDocuments generates one embedding per input text. Ollama's embedding
// endpoint takes a single prompt, so texts are embedded sequentially.
func (m *OllamaModel) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query.
func (m *OllamaModel) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return m.embed(ctx, query)
}

// Warm issues one embedding request so the server loads the model before
// the first real call.
func (m *OllamaModel) Warm(ctx context.Context) error {
	_, err := m.embed(ctx, "warm up")
	return err
}

func (m *OllamaModel) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: m.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return Normalize(vec), nil
}

var _ Model = (*OllamaModel)(nil)
var _ Warmer = (*OllamaModel)(nil)
