// Package vector abstracts vector storage backends behind one Provider
// interface.
//
// The in-process retrieval index does not depend on this package; it exists
// as the scaling path for corpora that outgrow a linear scan. Two backends
// are provided: chromem-go (embedded, pure Go) and Qdrant (external, gRPC).
package vector

import "context"

// Result is a single similarity search hit.
type Result struct {
	// ID of the stored document.
	ID string

	// Score is the similarity score reported by the backend (cosine).
	Score float32

	// Content is the stored text, when the backend keeps it.
	Content string

	// Metadata stored alongside the vector.
	Metadata map[string]any
}

// Provider is the interface for vector storage backends.
//
// All vectors within one collection must share the same dimensionality;
// scores are only comparable within one collection.
type Provider interface {
	// Upsert adds or updates a document with its pre-computed vector.
	// An existing entry with the same id is overwritten.
	Upsert(ctx context.Context, collection string, id string, vec []float32, metadata map[string]any) error

	// Search finds the topK most similar vectors in a collection,
	// ordered by descending score.
	Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error)

	// Delete removes a document by id. Deleting an absent id is not an error.
	Delete(ctx context.Context, collection string, id string) error

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Name returns the provider name.
	Name() string

	// Close releases resources and flushes any persistence.
	Close() error
}
