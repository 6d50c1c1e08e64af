package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process RetrievalIndex: an id-keyed document map with
// a full linear scan per query (O(N·d)).
//
// This is fine for corpora in the thousands of documents; it is explicitly
// not an approximate-nearest-neighbor index. ProviderIndex over chromem or
// Qdrant is the swap-in once the linear scan becomes the bottleneck.
//
// The index is an injected dependency with its lifetime owned by the host;
// tests construct isolated instances.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
	// insertion order of first appearance; overwrites keep their slot so
	// tie-breaking stays stable across re-indexing
	order []string
}

// NewMemoryIndex creates an empty in-memory retrieval index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs: make(map[string]Document),
	}
}

func (idx *MemoryIndex) Index(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return NewValidationError("document", "id is required")
	}
	if len(doc.Embedding) == 0 {
		return NewValidationError("document", "embedding must be non-empty")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[doc.ID]; !exists {
		idx.order = append(idx.order, doc.ID)
	}
	idx.docs[doc.ID] = doc
	return nil
}

func (idx *MemoryIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredDocument, error) {
	if topK <= 0 {
		return []ScoredDocument{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scored := make([]ScoredDocument, 0, len(idx.order))
	for _, id := range idx.order {
		doc := idx.docs[id]
		scored = append(scored, ScoredDocument{
			Document: doc,
			Score:    CosineSimilarity(queryEmbedding, doc.Embedding),
		})
	}

	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (idx *MemoryIndex) Delete(ctx context.Context, id string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[id]; !exists {
		return false, nil
	}

	delete(idx.docs, id)
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (idx *MemoryIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs), nil
}

// CosineSimilarity computes dot(a,b)/(|a|*|b|).
//
// A zero-magnitude vector (or mismatched dimensions) yields 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Ensure MemoryIndex implements RetrievalIndex.
var _ RetrievalIndex = (*MemoryIndex)(nil)
