// Package rag answers clinical questions by retrieval-augmented generation:
// embed, retrieve, expand, ground on guidelines, generate, validate.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/clinicore/clinicore/pkg/embedder"
	"github.com/clinicore/clinicore/pkg/knowledge"
	"github.com/clinicore/clinicore/pkg/model"
)

// defaultConditionVocabulary is the closed set of condition labels the
// service recognizes in questions. Matching is containment-based and the
// first match wins; multi-condition questions are not disambiguated.
var defaultConditionVocabulary = []string{
	"diabetes",
	"hypertension",
	"heart failure",
	"atrial fibrillation",
	"asthma",
	"copd",
	"pneumonia",
	"sepsis",
	"stroke",
	"chronic kidney disease",
	"depression",
	"anxiety",
}

// Config configures the query service.
type Config struct {
	// TopK documents retrieved for the primary query and the final result
	// size. Defaults to 10.
	TopK int `yaml:"top_k,omitempty"`

	// ExpansionTopK documents retrieved for the synonym-expanded query.
	// Defaults to 5.
	ExpansionTopK int `yaml:"expansion_top_k,omitempty"`

	// PromptTokenBudget bounds the generated prompt. Defaults to 6000.
	PromptTokenBudget int `yaml:"prompt_token_budget,omitempty"`

	// MaxTokens caps the answer generation. Defaults to 1024.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// ConditionVocabulary overrides the built-in condition label set.
	// Order matters: the first label contained in the question wins.
	ConditionVocabulary []string `yaml:"condition_vocabulary,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 10
	}
	if c.ExpansionTopK == 0 {
		c.ExpansionTopK = 5
	}
	if c.PromptTokenBudget == 0 {
		c.PromptTokenBudget = 6000
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if len(c.ConditionVocabulary) == 0 {
		c.ConditionVocabulary = defaultConditionVocabulary
	}
}

// Response is the complete result of one query. Queries either produce a
// full Response or fail; there is no partial response.
type Response struct {
	// Answer text, translated when a target language was requested.
	Answer string `json:"answer"`

	// Documents retrieved and ranked for the answer.
	Documents []knowledge.ScoredDocument `json:"documents"`

	// Guidelines that grounded the answer, most recently updated first.
	Guidelines []knowledge.Guideline `json:"guidelines"`

	// Warnings lists guidelines whose key recommendation did not appear
	// verbatim in the answer. Informational, never blocking.
	Warnings []string `json:"warnings,omitempty"`

	// Condition label extracted from the question, empty when none
	// matched.
	Condition string `json:"condition,omitempty"`

	// Confidence is the mean of average document relevance and guideline
	// compliance. A heuristic, not a calibrated probability.
	Confidence float64 `json:"confidence"`

	// Language of the answer.
	Language string `json:"language,omitempty"`

	// Duration of the whole query.
	Duration time.Duration `json:"duration"`
}

// Service runs the query pipeline.
type Service struct {
	config     Config
	embedder   embedder.Embedder
	index      knowledge.RetrievalIndex
	store      knowledge.Store
	llm        model.LLM
	source     GuidelineSource
	translator Translator
	prompts    *promptBuilder
	metrics    *Metrics
	logger     *slog.Logger
}

// NewService wires the query pipeline. The guideline source and translator
// are optional; nil selects the no-op implementations.
func NewService(config Config, emb embedder.Embedder, index knowledge.RetrievalIndex, store knowledge.Store, llm model.LLM, source GuidelineSource, translator Translator) (*Service, error) {
	config.SetDefaults()
	if emb == nil {
		return nil, fmt.Errorf("rag service requires an embedder")
	}
	if index == nil {
		return nil, fmt.Errorf("rag service requires a retrieval index")
	}
	if store == nil {
		return nil, fmt.Errorf("rag service requires a knowledge store")
	}
	if llm == nil {
		return nil, fmt.Errorf("rag service requires a model")
	}
	if source == nil {
		source = NilGuidelineSource{}
	}
	if translator == nil {
		translator = NopTranslator{}
	}
	return &Service{
		config:     config,
		embedder:   emb,
		index:      index,
		store:      store,
		llm:        llm,
		source:     source,
		translator: translator,
		prompts:    newPromptBuilder(config.PromptTokenBudget),
		metrics:    &Metrics{},
		logger:     slog.Default().With("component", "rag"),
	}, nil
}

// Metrics returns the service's query counters.
func (s *Service) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Query answers a question over the indexed corpus and applicable
// guidelines.
//
// Retrieval, expansion, guideline lookup and generation fail the query
// atomically. The external guideline source and the translator degrade
// silently: a source failure yields only local guidelines, a translation
// failure passes the untranslated answer through.
func (s *Service) Query(ctx context.Context, question string, callerContext map[string]any, language string) (*Response, error) {
	if strings.TrimSpace(question) == "" {
		s.metrics.recordFailure()
		return nil, knowledge.NewValidationError("question", "must not be empty")
	}
	started := time.Now()

	response, err := s.query(ctx, question, callerContext, language)
	if err != nil {
		s.metrics.recordFailure()
		return nil, err
	}
	response.Duration = time.Since(started)
	s.metrics.recordQuery(response.Duration, len(response.Documents), len(response.Warnings))
	s.logger.Debug("query answered",
		"documents", len(response.Documents),
		"guidelines", len(response.Guidelines),
		"warnings", len(response.Warnings),
		"confidence", response.Confidence,
		"duration", response.Duration)
	return response, nil
}

func (s *Service) query(ctx context.Context, question string, callerContext map[string]any, language string) (*Response, error) {
	documents, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	condition := s.extractCondition(question)
	guidelines, err := s.gatherGuidelines(ctx, condition)
	if err != nil {
		return nil, err
	}

	prompt := s.prompts.build(question, documents, guidelines, callerContext)
	generated, err := s.llm.Generate(ctx, &model.Request{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   prompt,
		Config:       model.Deterministic(s.config.MaxTokens),
	})
	if err != nil {
		return nil, NewExternalServiceError("generation", err)
	}
	answer := strings.TrimSpace(generated.Text)

	warnings := validateAnswer(answer, guidelines)
	confidence := computeConfidence(documents, guidelines, warnings)

	if language != "" {
		translated, err := s.translator.Translate(ctx, answer, language)
		if err != nil {
			s.logger.Warn("translation degraded to original answer", "language", language, "error", err)
		} else {
			answer = translated
		}
	}

	return &Response{
		Answer:     answer,
		Documents:  documents,
		Guidelines: guidelines,
		Warnings:   warnings,
		Condition:  condition,
		Confidence: confidence,
		Language:   language,
	}, nil
}

// retrieve embeds the question, searches the index, then repeats with a
// synonym-expanded question and merges both result sets by document id,
// keeping the higher-scoring instance of any duplicate.
func (s *Service) retrieve(ctx context.Context, question string) ([]knowledge.ScoredDocument, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, NewExternalServiceError("embedding", err)
	}
	primary, err := s.index.Search(ctx, queryEmbedding, s.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	synonyms, err := s.store.GetSynonyms(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("synonym lookup failed: %w", err)
	}
	if len(synonyms) == 0 {
		return primary, nil
	}

	expanded := question + " " + strings.Join(synonyms, " ")
	expandedEmbedding, err := s.embedder.Embed(ctx, expanded)
	if err != nil {
		return nil, NewExternalServiceError("embedding", err)
	}
	secondary, err := s.index.Search(ctx, expandedEmbedding, s.config.ExpansionTopK)
	if err != nil {
		return nil, fmt.Errorf("expanded retrieval failed: %w", err)
	}

	return mergeResults(primary, secondary, s.config.TopK), nil
}

// mergeResults combines two ranked result sets by document id, keeps the
// higher-scoring instance of any duplicate, re-sorts descending and
// truncates to topK.
func mergeResults(primary, secondary []knowledge.ScoredDocument, topK int) []knowledge.ScoredDocument {
	best := make(map[string]knowledge.ScoredDocument, len(primary)+len(secondary))
	var order []string
	for _, scored := range primary {
		best[scored.Document.ID] = scored
		order = append(order, scored.Document.ID)
	}
	for _, scored := range secondary {
		existing, seen := best[scored.Document.ID]
		if !seen {
			best[scored.Document.ID] = scored
			order = append(order, scored.Document.ID)
			continue
		}
		if scored.Score > existing.Score {
			best[scored.Document.ID] = scored
		}
	}

	merged := make([]knowledge.ScoredDocument, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// extractCondition matches the question against the condition vocabulary by
// containment; the first vocabulary entry found wins.
func (s *Service) extractCondition(question string) string {
	lowered := strings.ToLower(question)
	for _, label := range s.config.ConditionVocabulary {
		if strings.Contains(lowered, label) {
			return label
		}
	}
	return ""
}

// gatherGuidelines merges local and external guidelines for the condition,
// deduplicated by id (local wins) and sorted most recently updated first.
// External source failures degrade to local-only results.
func (s *Service) gatherGuidelines(ctx context.Context, condition string) ([]knowledge.Guideline, error) {
	if condition == "" {
		return nil, nil
	}

	local, err := s.store.GetGuidelines(ctx, condition)
	if err != nil {
		return nil, fmt.Errorf("guideline lookup failed: %w", err)
	}

	external, err := s.source.FetchGuidelines(ctx, condition)
	if err != nil {
		s.logger.Warn("external guideline source degraded",
			"source", s.source.Name(),
			"condition", condition,
			"error", err)
		external = nil
	}

	seen := make(map[string]bool, len(local))
	merged := make([]knowledge.Guideline, 0, len(local)+len(external))
	for _, guideline := range local {
		seen[guideline.ID] = true
		merged = append(merged, guideline)
	}
	for _, guideline := range external {
		if guideline.ID != "" && seen[guideline.ID] {
			continue
		}
		merged = append(merged, guideline)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastUpdated.After(merged[j].LastUpdated)
	})
	return merged, nil
}

// validateAnswer flags every guideline whose key recommendation is not
// contained verbatim in the answer. A literal-substring heuristic, not
// semantic matching.
func validateAnswer(answer string, guidelines []knowledge.Guideline) []string {
	var warnings []string
	for _, guideline := range guidelines {
		recommendation := strings.TrimSpace(guideline.KeyRecommendation)
		if recommendation == "" {
			continue
		}
		if !strings.Contains(answer, recommendation) {
			warnings = append(warnings,
				fmt.Sprintf("answer does not cite the key recommendation of %q (%s)", guideline.Title, guideline.Source))
		}
	}
	return warnings
}

// computeConfidence averages document relevance and guideline compliance.
// Negative similarities clamp to zero so the score stays in [0,1].
func computeConfidence(documents []knowledge.ScoredDocument, guidelines []knowledge.Guideline, warnings []string) float64 {
	relevance := 0.5
	if len(documents) > 0 {
		var sum float64
		for _, scored := range documents {
			score := scored.Score
			if score < 0 {
				score = 0
			}
			sum += score
		}
		relevance = sum / float64(len(documents))
	}

	compliance := 1.0
	if len(guidelines) > 0 {
		compliance = float64(len(guidelines)-len(warnings)) / float64(len(guidelines))
	}

	return (relevance + compliance) / 2
}
