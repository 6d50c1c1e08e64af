package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicore/clinicore/pkg/vector"
)

// ProviderIndex is a RetrievalIndex backed by a vector.Provider (chromem-go
// or Qdrant). It is the scaling path past MemoryIndex's linear scan.
//
// Document fields travel as provider metadata; the embedding lives in the
// backend. Scores come back from the provider's own cosine ranking, so they
// remain comparable only within one collection.
type ProviderIndex struct {
	provider   vector.Provider
	collection string
}

// NewProviderIndex creates a RetrievalIndex over a vector provider.
func NewProviderIndex(provider vector.Provider, collection string) (*ProviderIndex, error) {
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if collection == "" {
		collection = "knowledge"
	}
	return &ProviderIndex{
		provider:   provider,
		collection: collection,
	}, nil
}

func (idx *ProviderIndex) Index(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return NewValidationError("document", "id is required")
	}
	if len(doc.Embedding) == 0 {
		return NewValidationError("document", "embedding must be non-empty")
	}

	metadata := map[string]any{
		"title":   doc.Title,
		"content": doc.Content,
		"source":  doc.Source,
		"type":    string(doc.Type),
	}
	if len(doc.Keywords) > 0 {
		metadata["keywords"] = strings.Join(doc.Keywords, ",")
	}

	if err := idx.provider.Upsert(ctx, idx.collection, doc.ID, doc.Embedding, metadata); err != nil {
		return &IndexError{Operation: "upsert", DocumentID: doc.ID, Err: err}
	}
	return nil
}

func (idx *ProviderIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredDocument, error) {
	if topK <= 0 {
		return []ScoredDocument{}, nil
	}

	results, err := idx.provider.Search(ctx, idx.collection, queryEmbedding, topK)
	if err != nil {
		return nil, &IndexError{Operation: "search", Err: err}
	}

	scored := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:      r.ID,
			Content: r.Content,
		}
		if title, ok := r.Metadata["title"].(string); ok {
			doc.Title = title
		}
		if source, ok := r.Metadata["source"].(string); ok {
			doc.Source = source
		}
		if docType, ok := r.Metadata["type"].(string); ok {
			doc.Type = DocumentType(docType)
		}
		if keywords, ok := r.Metadata["keywords"].(string); ok && keywords != "" {
			doc.Keywords = strings.Split(keywords, ",")
		}

		scored = append(scored, ScoredDocument{
			Document: doc,
			Score:    float64(r.Score),
		})
	}

	return scored, nil
}

// Delete removes a document by id. Remote backends do not report whether the
// id existed, so Delete returns true whenever the call succeeds.
func (idx *ProviderIndex) Delete(ctx context.Context, id string) (bool, error) {
	if err := idx.provider.Delete(ctx, idx.collection, id); err != nil {
		return false, &IndexError{Operation: "delete", DocumentID: id, Err: err}
	}
	return true, nil
}

func (idx *ProviderIndex) Count(ctx context.Context) (int, error) {
	count, err := idx.provider.Count(ctx, idx.collection)
	if err != nil {
		return 0, &IndexError{Operation: "count", Err: err}
	}
	return count, nil
}

// Ensure ProviderIndex implements RetrievalIndex.
var _ RetrievalIndex = (*ProviderIndex)(nil)
