// Package knowledge holds the clinical knowledge corpus: embedded documents
// with similarity retrieval, authoritative guidelines, and the synonym
// thesaurus used for query expansion.
package knowledge

import (
	"context"
	"time"
)

// DocumentType classifies a knowledge document.
type DocumentType string

const (
	DocumentTypeGuideline DocumentType = "guideline"
	DocumentTypeProtocol  DocumentType = "protocol"
	DocumentTypeReference DocumentType = "reference"
	DocumentTypeNote      DocumentType = "note"
)

// Document is an embedded knowledge document.
//
// The embedding must be non-empty to be indexable; all embeddings within one
// index must come from the same model, since cosine scores are only
// comparable within one embedding space.
type Document struct {
	// ID uniquely identifies the document within an index (last write wins).
	ID string `json:"id"`

	// Title of the document.
	Title string `json:"title"`

	// Content is the document text.
	Content string `json:"content"`

	// Source names where the document came from.
	Source string `json:"source"`

	// Embedding is the fixed-dimension vector for similarity search.
	Embedding []float32 `json:"embedding,omitempty"`

	// Keywords for auxiliary filtering.
	Keywords []string `json:"keywords,omitempty"`

	// Type classifies the document.
	Type DocumentType `json:"type,omitempty"`
}

// ScoredDocument is a document with its query-time relevance score.
//
// The score is cosine similarity in [-1, 1]; it ranks documents within one
// index and is meaningless across indexes built from different embedding
// models.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Guideline is an authoritative, sourced clinical recommendation.
//
// Guidelines are read-only from the engine's perspective; the knowledge
// store owns them.
type Guideline struct {
	// ID uniquely identifies the guideline.
	ID string `json:"id"`

	// Title of the guideline.
	Title string `json:"title"`

	// Source organization (e.g. "ADA", "AHA").
	Source string `json:"source"`

	// KeyRecommendation is the actionable recommendation text. Answer
	// validation checks for its presence in generated answers.
	KeyRecommendation string `json:"key_recommendation"`

	// LastUpdated orders guidelines by recency when merging sources.
	LastUpdated time.Time `json:"last_updated"`

	// Conditions this guideline applies to (lowercase keywords).
	Conditions []string `json:"conditions,omitempty"`
}

// RetrievalIndex stores embedded documents and answers similarity queries.
type RetrievalIndex interface {
	// Index adds or replaces a document. The document embedding must be
	// non-empty; entries with an existing id are overwritten.
	Index(ctx context.Context, doc Document) error

	// Search ranks indexed documents by cosine similarity against the
	// query embedding, descending, truncated to topK. Ties keep insertion
	// order.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredDocument, error)

	// Delete removes a document by id; returns false (not an error) when
	// the id is absent.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
}

// Store supplies guideline records and the synonym thesaurus.
type Store interface {
	// StoreDocument upserts a document's descriptive record.
	StoreDocument(ctx context.Context, doc Document) error

	// GetGuidelines returns guidelines applicable to a condition keyword.
	// An unknown condition yields an empty list, not an error.
	GetGuidelines(ctx context.Context, condition string) ([]Guideline, error)

	// GetSynonyms returns thesaurus expansions for terms found in query.
	GetSynonyms(ctx context.Context, query string) ([]string, error)

	// Close releases resources.
	Close() error
}
