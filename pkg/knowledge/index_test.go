package knowledge

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1.0,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0.0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1.0,
		},
		{
			name: "zero vector",
			a:    []float32{0, 0},
			b:    []float32{1, 2},
			want: 0.0,
		},
		{
			name: "both zero",
			a:    []float32{0, 0},
			b:    []float32{0, 0},
			want: 0.0,
		},
		{
			name: "empty vectors",
			a:    nil,
			b:    []float32{1, 2},
			want: 0.0,
		},
		{
			name: "mismatched dimensions",
			a:    []float32{1, 2},
			b:    []float32{1, 2, 3},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.False(t, math.IsNaN(got), "similarity must never be NaN")
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMemoryIndex_RejectsEmptyEmbedding(t *testing.T) {
	idx := NewMemoryIndex()

	err := idx.Index(context.Background(), Document{ID: "doc-1", Title: "No embedding"})
	require.Error(t, err)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestMemoryIndex_SearchRanking(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Index(ctx, Document{ID: "a", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "b", Embedding: []float32{0, 1}}))

	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_SearchDescendingAndTruncated(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Index(ctx, Document{ID: "far", Embedding: []float32{0, 1}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "near", Embedding: []float32{1, 0.1}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "exact", Embedding: []float32{1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Document.ID)
	assert.Equal(t, "near", results[1].Document.ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestMemoryIndex_StableTies(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	// Same embedding, so identical scores; insertion order must win.
	require.NoError(t, idx.Index(ctx, Document{ID: "first", Embedding: []float32{1, 1}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "second", Embedding: []float32{1, 1}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "third", Embedding: []float32{1, 1}}))

	results, err := idx.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Document.ID)
	assert.Equal(t, "second", results[1].Document.ID)
	assert.Equal(t, "third", results[2].Document.ID)
}

func TestMemoryIndex_ReindexOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Index(ctx, Document{ID: "doc", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Index(ctx, Document{ID: "doc", Embedding: []float32{0, 1}}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Search must reflect only the new embedding.
	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	results, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Index(ctx, Document{ID: "doc", Embedding: []float32{1, 0}}))

	deleted, err := idx.Delete(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = idx.Delete(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting an absent id returns false, not an error")

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryIndex_ZeroQueryVector(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Index(ctx, Document{ID: "doc", Embedding: []float32{1, 0}}))

	results, err := idx.Search(ctx, []float32{0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}
