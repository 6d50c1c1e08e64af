package model

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/httpclient"
)

// OpenAILLM implements LLM against the OpenAI chat completions API.
//
// Any OpenAI-compatible endpoint works by overriding BaseURL (Azure OpenAI,
// vLLM, LM Studio, etc).
type OpenAILLM struct {
	client  *httpclient.Client
	apiKey  string
	baseURL string
	model   string
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey for authentication (required).
	APIKey string `yaml:"api_key"`

	// Model name (default: gpt-4o-mini).
	Model string `yaml:"model,omitempty"`

	// BaseURL for OpenAI-compatible endpoints (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout in seconds for a single call (default: 60).
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries for transient failures (default: 3).
	MaxRetries int `yaml:"max_retries,omitempty"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAILLM creates an OpenAI-backed LLM.
func NewOpenAILLM(cfg OpenAIConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI model")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &OpenAILLM{
		client:  newJSONClient(timeout, maxRetries),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
	}, nil
}

func (m *OpenAILLM) Name() string {
	return m.model
}

func (m *OpenAILLM) Provider() Provider {
	return ProviderOpenAI
}

func (m *OpenAILLM) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	chatReq := openAIChatRequest{
		Model: m.model,
	}
	if req.SystemPrompt != "" {
		chatReq.Messages = append(chatReq.Messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	chatReq.Messages = append(chatReq.Messages, openAIMessage{Role: "user", Content: req.UserPrompt})

	if cfg := req.Config; cfg != nil {
		chatReq.Temperature = cfg.Temperature
		chatReq.MaxTokens = cfg.MaxTokens
		chatReq.TopP = cfg.TopP
		chatReq.Stop = cfg.StopSequences
	}

	var chatResp openAIChatResponse
	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	if err := m.client.PostJSON(ctx, m.baseURL+"/chat/completions", headers, chatReq, &chatResp); err != nil {
		return nil, fmt.Errorf("openai generation failed: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	choice := chatResp.Choices[0]
	return &Response{
		Text: choice.Message.Content,
		Usage: &Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
		FinishReason: toFinishReason(choice.FinishReason),
	}, nil
}

func (m *OpenAILLM) Close() error {
	return nil
}

func toFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	default:
		return FinishReasonStop
	}
}

// Ensure OpenAILLM implements LLM.
var _ LLM = (*OpenAILLM)(nil)
