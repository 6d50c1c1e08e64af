package embedder

import "fmt"

// ProviderType identifies an embedder implementation.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config selects and configures an embedder provider.
type Config struct {
	// Provider identifies which implementation to create.
	Provider ProviderType `yaml:"provider"`

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
		return fmt.Errorf("embedder provider is required")
	default:
		return fmt.Errorf("unknown embedder provider: %q", c.Provider)
	}
}

// New creates an Embedder from configuration.
func New(cfg *Config) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder configuration is required")
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai configuration is required")
		}
		return NewOpenAIEmbedder(*cfg.OpenAI)

	case ProviderOllama:
		ollamaCfg := OllamaConfig{}
		if cfg.Ollama != nil {
			ollamaCfg = *cfg.Ollama
		}
		return NewOllamaEmbedder(ollamaCfg)

	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.Provider)
	}
}
