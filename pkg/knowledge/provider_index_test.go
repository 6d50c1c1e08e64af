package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/vector"
)

func newChromemIndex(t *testing.T) *ProviderIndex {
	t.Helper()

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)

	idx, err := NewProviderIndex(provider, "knowledge_test")
	require.NoError(t, err)
	return idx
}

func TestProviderIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := newChromemIndex(t)

	docs := []Document{
		{
			ID:        "hba1c-targets",
			Title:     "HbA1c targets",
			Content:   "Target HbA1c below 7% for most adults.",
			Source:    "ada",
			Type:      DocumentTypeGuideline,
			Keywords:  []string{"diabetes", "hba1c"},
			Embedding: []float32{1, 0, 0},
		},
		{
			ID:        "metformin-first-line",
			Title:     "Metformin as first-line therapy",
			Content:   "Metformin is first-line pharmacotherapy for type 2 diabetes.",
			Source:    "ada",
			Type:      DocumentTypeProtocol,
			Embedding: []float32{0.9, 0.1, 0},
		},
		{
			ID:        "triage-levels",
			Title:     "Emergency triage levels",
			Content:   "Five-level triage assigns acuity from resuscitation to non-urgent.",
			Source:    "esi",
			Type:      DocumentTypeReference,
			Embedding: []float32{0, 1, 0},
		},
	}
	for _, doc := range docs {
		require.NoError(t, idx.Index(ctx, doc))
	}

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "hba1c-targets", results[0].Document.ID)
	assert.Equal(t, "metformin-first-line", results[1].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// Document fields survive the metadata round trip.
	got := results[0].Document
	assert.Equal(t, "HbA1c targets", got.Title)
	assert.Equal(t, "Target HbA1c below 7% for most adults.", got.Content)
	assert.Equal(t, "ada", got.Source)
	assert.Equal(t, DocumentTypeGuideline, got.Type)
	assert.Equal(t, []string{"diabetes", "hba1c"}, got.Keywords)

	deleted, err := idx.Delete(ctx, "hba1c-targets")
	require.NoError(t, err)
	assert.True(t, deleted)

	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err = idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "metformin-first-line", results[0].Document.ID)
}

func TestProviderIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newChromemIndex(t)

	doc := Document{
		ID:        "hba1c-targets",
		Title:     "HbA1c targets",
		Content:   "Target HbA1c below 7% for most adults.",
		Embedding: []float32{1, 0, 0},
	}
	require.NoError(t, idx.Index(ctx, doc))

	doc.Content = "Target HbA1c below 8% for adults with limited life expectancy."
	require.NoError(t, idx.Index(ctx, doc))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.Content, results[0].Document.Content)
}

func TestProviderIndexValidation(t *testing.T) {
	ctx := context.Background()
	idx := newChromemIndex(t)

	var verr *ValidationError

	err := idx.Index(ctx, Document{Embedding: []float32{1}})
	require.ErrorAs(t, err, &verr)

	err = idx.Index(ctx, Document{ID: "no-embedding"})
	require.ErrorAs(t, err, &verr)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = NewProviderIndex(nil, "knowledge_test")
	require.Error(t, err)
}
