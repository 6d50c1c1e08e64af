package model

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clinicore/clinicore/pkg/httpclient"
)

// OllamaLLM implements LLM against a local Ollama server.
type OllamaLLM struct {
	client  *httpclient.Client
	baseURL string
	model   string
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	// Host of the Ollama server (default: http://localhost:11434).
	Host string `yaml:"host,omitempty"`

	// Model name (default: llama3.2).
	Model string `yaml:"model,omitempty"`

	// Timeout in seconds for a single call (default: 120; local models are slow).
	Timeout int `yaml:"timeout,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// NewOllamaLLM creates an Ollama-backed LLM.
func NewOllamaLLM(cfg OllamaConfig) (*OllamaLLM, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	timeout := 120 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &OllamaLLM{
		client:  newJSONClient(timeout, 2),
		baseURL: host,
		model:   model,
	}, nil
}

func (m *OllamaLLM) Name() string {
	return m.model
}

func (m *OllamaLLM) Provider() Provider {
	return ProviderOllama
}

func (m *OllamaLLM) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	genReq := ollamaGenerateRequest{
		Model:  m.model,
		System: req.SystemPrompt,
		Prompt: req.UserPrompt,
		Stream: false,
	}

	if cfg := req.Config; cfg != nil {
		options := make(map[string]any)
		if cfg.Temperature != nil {
			options["temperature"] = *cfg.Temperature
		}
		if cfg.MaxTokens != nil {
			options["num_predict"] = *cfg.MaxTokens
		}
		if cfg.TopP != nil {
			options["top_p"] = *cfg.TopP
		}
		if len(cfg.StopSequences) > 0 {
			options["stop"] = cfg.StopSequences
		}
		if len(options) > 0 {
			genReq.Options = options
		}
	}

	var genResp ollamaGenerateResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/api/generate", nil, genReq, &genResp); err != nil {
		return nil, fmt.Errorf("ollama generation failed: %w", err)
	}

	finish := FinishReasonStop
	if genResp.DoneReason == "length" {
		finish = FinishReasonLength
	}

	return &Response{
		Text: genResp.Response,
		Usage: &Usage{
			PromptTokens:     genResp.PromptEvalCount,
			CompletionTokens: genResp.EvalCount,
			TotalTokens:      genResp.PromptEvalCount + genResp.EvalCount,
		},
		FinishReason: finish,
	}, nil
}

func (m *OllamaLLM) Close() error {
	return nil
}

// newJSONClient builds the shared retrying client used by the providers.
func newJSONClient(timeout time.Duration, maxRetries int) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(maxRetries),
	)
}

// Ensure OllamaLLM implements LLM.
var _ LLM = (*OllamaLLM)(nil)
