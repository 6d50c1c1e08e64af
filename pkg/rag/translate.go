package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicore/clinicore/pkg/model"
)

// Translator renders an answer into the caller's language. Translation is a
// best-effort helper: failures pass the original text through instead of
// failing the query.
type Translator interface {
	// Translate renders text into the target language. An empty or "en"
	// target returns the text unchanged.
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// NopTranslator passes text through unchanged.
type NopTranslator struct{}

var _ Translator = NopTranslator{}

func (NopTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// LLMTranslator translates via the generation model.
type LLMTranslator struct {
	llm       model.LLM
	maxTokens int
}

var _ Translator = (*LLMTranslator)(nil)

// NewLLMTranslator creates a translator on top of the given model.
func NewLLMTranslator(llm model.LLM) (*LLMTranslator, error) {
	if llm == nil {
		return nil, fmt.Errorf("translator requires a model")
	}
	return &LLMTranslator{llm: llm, maxTokens: 2048}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	targetLanguage = strings.TrimSpace(strings.ToLower(targetLanguage))
	if targetLanguage == "" || targetLanguage == "en" || strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := t.llm.Generate(ctx, &model.Request{
		SystemPrompt: "You are a medical translator. Translate the text faithfully; keep clinical terms, dosages and guideline citations exact.",
		UserPrompt:   fmt.Sprintf("Translate into %s:\n\n%s", targetLanguage, text),
		Config:       model.Deterministic(t.maxTokens),
	})
	if err != nil {
		return "", NewExternalServiceError("translator", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
