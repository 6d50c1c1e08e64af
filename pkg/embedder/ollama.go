package embedder

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/clinicore/clinicore/pkg/httpclient"
)

// Serializes Ollama embedding requests. Ollama's llama runner crashes with
// SIGABRT when it receives concurrent embedding requests.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder implements Embedder against a local Ollama server.
type OllamaEmbedder struct {
	client    *httpclient.Client
	baseURL   string
	model     string
	dimension int
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host of the Ollama server (default: http://localhost:11434).
	Host string `yaml:"host,omitempty"`

	// Model name (default: nomic-embed-text).
	Model string `yaml:"model,omitempty"`

	// Dimension of the output vectors (default: 768).
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout in seconds for a single call (default: 30).
	Timeout int `yaml:"timeout,omitempty"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama-backed embedder.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768
	}

	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &OllamaEmbedder{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(3),
		),
		baseURL:   host,
		model:     model,
		dimension: dimension,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	req := ollamaEmbedRequest{
		Model:  e.model,
		Prompt: text,
	}

	var resp ollamaEmbedResponse
	if err := e.client.PostJSON(ctx, e.baseURL+"/api/embeddings", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama")
	}

	return resp.Embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Ollama has no batch endpoint; embed sequentially.
	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results = append(results, embedding)
	}
	return results, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *OllamaEmbedder) Model() string {
	return e.model
}

func (e *OllamaEmbedder) Close() error {
	return nil
}

// Ensure OllamaEmbedder implements Embedder.
var _ Embedder = (*OllamaEmbedder)(nil)
