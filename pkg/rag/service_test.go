package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/knowledge"
	"github.com/clinicore/clinicore/pkg/model"
)

// mapEmbedder returns fixed vectors keyed by exact text, or fallback for
// anything else.
type mapEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if vector, ok := m.vectors[text]; ok {
		return vector, nil
	}
	return m.fallback, nil
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

func (m *mapEmbedder) Dimension() int { return len(m.fallback) }
func (m *mapEmbedder) Model() string  { return "map-embedder" }
func (m *mapEmbedder) Close() error   { return nil }

type answerLLM struct {
	text string
	err  error
}

func (a *answerLLM) Name() string             { return "answer-stub" }
func (a *answerLLM) Provider() model.Provider { return model.ProviderUnknown }
func (a *answerLLM) Close() error             { return nil }

func (a *answerLLM) Generate(context.Context, *model.Request) (*model.Response, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &model.Response{Text: a.text}, nil
}

type stubSource struct {
	guidelines []knowledge.Guideline
	err        error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchGuidelines(context.Context, string) ([]knowledge.Guideline, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.guidelines, nil
}

type failingTranslator struct{}

func (failingTranslator) Translate(context.Context, string, string) (string, error) {
	return "", errors.New("translator down")
}

func mustIndex(t *testing.T, index knowledge.RetrievalIndex, docs ...knowledge.Document) {
	t.Helper()
	for _, doc := range docs {
		require.NoError(t, index.Index(context.Background(), doc))
	}
}

func newDiabetesFixture(t *testing.T, llm model.LLM, source GuidelineSource, translator Translator) *Service {
	t.Helper()

	index := knowledge.NewMemoryIndex()
	mustIndex(t, index,
		knowledge.Document{ID: "metformin", Title: "Metformin therapy", Content: "Metformin is first-line therapy.", Embedding: []float32{1, 0}},
		knowledge.Document{ID: "insulin", Title: "Insulin titration", Content: "Titrate basal insulin weekly.", Embedding: []float32{0.9, 0.1}},
		knowledge.Document{ID: "unrelated", Title: "Hand hygiene", Content: "Wash hands.", Embedding: []float32{0, 1}},
	)

	store := knowledge.NewMemoryStore()
	store.AddGuideline(knowledge.Guideline{
		ID:                "ada-2025",
		Title:             "Glycemic targets",
		Source:            "ADA",
		KeyRecommendation: "Target HbA1c below 7% for most adults.",
		LastUpdated:       time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Conditions:        []string{"diabetes"},
	})

	emb := &mapEmbedder{
		vectors:  map[string][]float32{},
		fallback: []float32{1, 0},
	}

	service, err := NewService(Config{}, emb, index, store, llm, source, translator)
	require.NoError(t, err)
	return service
}

func TestQueryIncludesLocalDiabetesGuideline(t *testing.T) {
	llm := &answerLLM{text: "Target HbA1c below 7% for most adults. Start metformin."}
	service := newDiabetesFixture(t, llm, nil, nil)

	response, err := service.Query(context.Background(), "What is the glycemic target for diabetes?", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "diabetes", response.Condition)
	require.Len(t, response.Guidelines, 1)
	assert.Equal(t, "ada-2025", response.Guidelines[0].ID)
	assert.Empty(t, response.Warnings)
	assert.NotEmpty(t, response.Documents)
	assert.Greater(t, response.Confidence, 0.5)
}

func TestQueryWarnsWhenRecommendationNotCited(t *testing.T) {
	llm := &answerLLM{text: "Keep blood sugar under control."}
	service := newDiabetesFixture(t, llm, nil, nil)

	response, err := service.Query(context.Background(), "How should diabetes be managed?", nil, "")
	require.NoError(t, err)

	require.Len(t, response.Warnings, 1)
	assert.Contains(t, response.Warnings[0], "Glycemic targets")
}

func TestQueryMergesExternalGuidelinesByRecency(t *testing.T) {
	newer := knowledge.Guideline{
		ID:                "who-2026",
		Title:             "Screening intervals",
		Source:            "WHO",
		KeyRecommendation: "Screen high-risk adults annually.",
		LastUpdated:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	llm := &answerLLM{text: "Target HbA1c below 7% for most adults. Screen high-risk adults annually."}
	service := newDiabetesFixture(t, llm, &stubSource{guidelines: []knowledge.Guideline{newer}}, nil)

	response, err := service.Query(context.Background(), "diabetes follow-up?", nil, "")
	require.NoError(t, err)

	require.Len(t, response.Guidelines, 2)
	// Most recently updated first.
	assert.Equal(t, "who-2026", response.Guidelines[0].ID)
	assert.Equal(t, "ada-2025", response.Guidelines[1].ID)
}

func TestQueryExternalSourceFailureDegradesSilently(t *testing.T) {
	llm := &answerLLM{text: "Target HbA1c below 7% for most adults."}
	service := newDiabetesFixture(t, llm, &stubSource{err: errors.New("upstream 503")}, nil)

	response, err := service.Query(context.Background(), "diabetes targets?", nil, "")
	require.NoError(t, err)
	require.Len(t, response.Guidelines, 1)
	assert.Equal(t, "ada-2025", response.Guidelines[0].ID)
}

func TestQueryEmbeddingFailureIsAtomic(t *testing.T) {
	index := knowledge.NewMemoryIndex()
	store := knowledge.NewMemoryStore()
	emb := &mapEmbedder{err: errors.New("embedder down"), fallback: []float32{1}}
	service, err := NewService(Config{}, emb, index, store, &answerLLM{text: "x"}, nil, nil)
	require.NoError(t, err)

	_, err = service.Query(context.Background(), "anything", nil, "")
	var external *ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, "embedding", external.Service)
}

func TestQueryGenerationFailureIsAtomic(t *testing.T) {
	service := newDiabetesFixture(t, &answerLLM{err: errors.New("model down")}, nil, nil)

	_, err := service.Query(context.Background(), "diabetes targets?", nil, "")
	var external *ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, "generation", external.Service)
}

func TestQueryTranslationFailurePassesOriginalThrough(t *testing.T) {
	llm := &answerLLM{text: "Target HbA1c below 7% for most adults."}
	service := newDiabetesFixture(t, llm, nil, failingTranslator{})

	response, err := service.Query(context.Background(), "diabetes targets?", nil, "es")
	require.NoError(t, err)
	assert.Equal(t, "Target HbA1c below 7% for most adults.", response.Answer)
	assert.Equal(t, "es", response.Language)
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	service := newDiabetesFixture(t, &answerLLM{text: "x"}, nil, nil)

	_, err := service.Query(context.Background(), "   ", nil, "")
	var validation *knowledge.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestQuerySynonymExpansionBroadensRetrieval(t *testing.T) {
	index := knowledge.NewMemoryIndex()
	mustIndex(t, index,
		knowledge.Document{ID: "mi", Title: "MI management", Content: "Aspirin immediately.", Embedding: []float32{0, 1}},
		knowledge.Document{ID: "cp", Title: "Chest pain triage", Content: "Obtain ECG.", Embedding: []float32{1, 0}},
	)

	store := knowledge.NewMemoryStore()
	store.AddSynonyms("infarction", "mi")

	emb := &mapEmbedder{
		vectors: map[string][]float32{
			// Plain question lands near the chest pain document, the
			// synonym-expanded one near the MI document.
			"myocardial infarction workup":    {1, 0},
			"myocardial infarction workup mi": {0, 1},
		},
		fallback: []float32{1, 0},
	}

	service, err := NewService(Config{}, emb, index, store, &answerLLM{text: "Obtain ECG. Aspirin immediately."}, nil, nil)
	require.NoError(t, err)

	response, err := service.Query(context.Background(), "myocardial infarction workup", nil, "")
	require.NoError(t, err)

	ids := make([]string, len(response.Documents))
	for i, scored := range response.Documents {
		ids[i] = scored.Document.ID
	}
	assert.ElementsMatch(t, []string{"mi", "cp"}, ids)
}

func TestMergeResultsKeepsHigherScoreAndTruncates(t *testing.T) {
	doc := func(id string, score float64) knowledge.ScoredDocument {
		return knowledge.ScoredDocument{Document: knowledge.Document{ID: id}, Score: score}
	}

	merged := mergeResults(
		[]knowledge.ScoredDocument{doc("a", 0.9), doc("b", 0.5), doc("c", 0.4)},
		[]knowledge.ScoredDocument{doc("b", 0.8), doc("d", 0.6)},
		3,
	)

	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].Document.ID)
	assert.Equal(t, "b", merged[1].Document.ID)
	assert.InDelta(t, 0.8, merged[1].Score, 1e-9)
	assert.Equal(t, "d", merged[2].Document.ID)
}

func TestComputeConfidence(t *testing.T) {
	docs := []knowledge.ScoredDocument{{Score: 0.8}, {Score: 0.6}}
	guidelines := []knowledge.Guideline{{ID: "g1"}, {ID: "g2"}}

	// relevance 0.7, compliance 0.5 with one warning of two guidelines.
	assert.InDelta(t, 0.6, computeConfidence(docs, guidelines, []string{"w"}), 1e-9)

	// No documents defaults relevance to 0.5; no guidelines means full
	// compliance.
	assert.InDelta(t, 0.75, computeConfidence(nil, nil, nil), 1e-9)

	// Negative similarity clamps to zero.
	assert.InDelta(t, 0.5, computeConfidence([]knowledge.ScoredDocument{{Score: -1}}, nil, nil), 1e-9)
}

func TestExtractConditionFirstMatchWins(t *testing.T) {
	service := newDiabetesFixture(t, &answerLLM{text: "x"}, nil, nil)

	assert.Equal(t, "diabetes", service.extractCondition("Diabetes and hypertension management"))
	assert.Equal(t, "hypertension", service.extractCondition("resistant HYPERTENSION"))
	assert.Equal(t, "", service.extractCondition("ankle sprain"))
}

func TestMetricsCounters(t *testing.T) {
	llm := &answerLLM{text: "Target HbA1c below 7% for most adults."}
	service := newDiabetesFixture(t, llm, nil, nil)

	_, err := service.Query(context.Background(), "diabetes targets?", nil, "")
	require.NoError(t, err)
	_, err = service.Query(context.Background(), " ", nil, "")
	require.Error(t, err)

	snapshot := service.Metrics()
	assert.Equal(t, int64(2), snapshot.Queries)
	assert.Equal(t, int64(1), snapshot.Failures)
	assert.Greater(t, snapshot.DocumentsRetrieved, int64(0))
}
