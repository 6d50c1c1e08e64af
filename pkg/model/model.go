// Package model defines the language model interface used for generation.
//
// The workflow agents, the collaboration synthesizer, the task planner and
// the RAG answer step all speak to models through the LLM interface; the
// concrete providers (OpenAI-compatible APIs, Ollama) live alongside it.
package model

import (
	"context"
)

// LLM is the interface for text generation models.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Provider returns the provider type (e.g. "openai", "ollama").
	Provider() Provider

	// Generate produces a completion for the given request.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the model.
	Close() error
}

// Provider identifies the LLM provider.
type Provider string

const (
	// ProviderOpenAI covers OpenAI and OpenAI-compatible chat APIs.
	ProviderOpenAI Provider = "openai"

	// ProviderOllama represents Ollama local models.
	ProviderOllama Provider = "ollama"

	// ProviderUnknown for unrecognized providers.
	ProviderUnknown Provider = "unknown"
)

// Request contains the input for a generation call.
type Request struct {
	// SystemPrompt is prepended to the conversation.
	SystemPrompt string

	// UserPrompt is the user-role message.
	UserPrompt string

	// Config contains sampling configuration.
	Config *GenerateConfig
}

// GenerateConfig contains sampling configuration.
type GenerateConfig struct {
	// Temperature controls randomness (0-2).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int

	// TopP controls nucleus sampling.
	TopP *float64

	// StopSequences terminates generation.
	StopSequences []string
}

// Clone creates a deep copy of the GenerateConfig.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}

	clone := *c

	if c.Temperature != nil {
		temp := *c.Temperature
		clone.Temperature = &temp
	}
	if c.MaxTokens != nil {
		maxTok := *c.MaxTokens
		clone.MaxTokens = &maxTok
	}
	if c.TopP != nil {
		topP := *c.TopP
		clone.TopP = &topP
	}
	if c.StopSequences != nil {
		clone.StopSequences = make([]string, len(c.StopSequences))
		copy(clone.StopSequences, c.StopSequences)
	}

	return &clone
}

// Deterministic returns a config suited for factual, repeatable output:
// near-zero temperature and a bounded response length.
func Deterministic(maxTokens int) *GenerateConfig {
	temp := 0.1
	return &GenerateConfig{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}

// Response contains the result of a generation call.
type Response struct {
	// Text is the generated completion.
	Text string

	// Usage statistics, when the provider reports them.
	Usage *Usage

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonError  FinishReason = "error"
)
