package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/clinicore/clinicore/pkg/knowledge"
)

const answerSystemPrompt = `You are a clinical knowledge assistant. Answer strictly from the provided documents and guidelines.
Quote each guideline's key recommendation verbatim when it applies. If the material does not cover the question, say so.
Your answers support, never replace, clinical judgment.`

// promptBuilder assembles the answer prompt under a token budget. Guidelines
// and caller context are always included; retrieved documents fill the
// remaining budget in relevance order.
type promptBuilder struct {
	budget   int
	encoding *tiktoken.Tiktoken
}

func newPromptBuilder(budget int) *promptBuilder {
	// Offline token counting; falls back to a bytes/4 estimate when the
	// encoding is unavailable.
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoding = nil
	}
	return &promptBuilder{budget: budget, encoding: encoding}
}

func (b *promptBuilder) countTokens(text string) int {
	if b.encoding == nil {
		return len(text) / 4
	}
	return len(b.encoding.Encode(text, nil, nil))
}

func (b *promptBuilder) build(question string, documents []knowledge.ScoredDocument, guidelines []knowledge.Guideline, callerContext map[string]any) string {
	var sb strings.Builder

	if len(callerContext) > 0 {
		sb.WriteString("Caller context:\n")
		keys := make([]string, 0, len(callerContext))
		for key := range callerContext {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", key, callerContext[key])
		}
		sb.WriteString("\n")
	}

	if len(guidelines) > 0 {
		sb.WriteString("Clinical guidelines (most recent first):\n")
		for _, guideline := range guidelines {
			fmt.Fprintf(&sb, "- %s (%s, updated %s): %s\n",
				guideline.Title, guideline.Source,
				guideline.LastUpdated.Format("2006-01-02"),
				guideline.KeyRecommendation)
		}
		sb.WriteString("\n")
	}

	question = strings.TrimSpace(question)
	footer := fmt.Sprintf("Question: %s\n\nAnswer:", question)

	used := b.countTokens(sb.String()) + b.countTokens(footer)
	if len(documents) > 0 {
		sb.WriteString("Reference documents:\n")
		used += b.countTokens("Reference documents:\n")
		for _, scored := range documents {
			section := fmt.Sprintf("--- %s (relevance %.2f)\n%s\n", scored.Document.Title, scored.Score, scored.Document.Content)
			cost := b.countTokens(section)
			if used+cost > b.budget {
				break
			}
			sb.WriteString(section)
			used += cost
		}
		sb.WriteString("\n")
	}

	sb.WriteString(footer)
	return sb.String()
}
