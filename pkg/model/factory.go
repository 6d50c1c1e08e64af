package model

import "fmt"

// Config selects and configures an LLM provider.
type Config struct {
	// Provider identifies which implementation to create.
	Provider Provider `yaml:"provider"`

	// OpenAI configuration (used when Provider == "openai").
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`

	// Ollama configuration (used when Provider == "ollama").
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Provider == ProviderOllama && c.Ollama == nil {
		c.Ollama = &OllamaConfig{}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAI == nil {
			return fmt.Errorf("openai configuration is required")
		}
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai api_key is required")
		}
		return nil
	case ProviderOllama:
		return nil
	case "":
		return fmt.Errorf("model provider is required")
	default:
		return fmt.Errorf("unknown model provider: %q", c.Provider)
	}
}

// New creates an LLM from configuration.
func New(cfg *Config) (LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("model configuration is required")
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai configuration is required")
		}
		return NewOpenAILLM(*cfg.OpenAI)

	case ProviderOllama:
		ollamaCfg := OllamaConfig{}
		if cfg.Ollama != nil {
			ollamaCfg = *cfg.Ollama
		}
		return NewOllamaLLM(ollamaCfg)

	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Provider)
	}
}
