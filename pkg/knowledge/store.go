package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store.
//
// It keeps document records, guidelines keyed by condition, and the synonym
// thesaurus in mutex-guarded maps. The SQL store offers the same contract
// over a shared database.
type MemoryStore struct {
	mu         sync.RWMutex
	documents  map[string]Document
	guidelines []Guideline
	synonyms   map[string][]string
}

// NewMemoryStore creates an empty in-memory knowledge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]Document),
		synonyms:  make(map[string][]string),
	}
}

func (s *MemoryStore) StoreDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return NewValidationError("document", "id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

// GetDocument returns a stored document record by id.
func (s *MemoryStore) GetDocument(ctx context.Context, id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// AddGuideline registers a guideline.
func (s *MemoryStore) AddGuideline(g Guideline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guidelines = append(s.guidelines, g)
}

func (s *MemoryStore) GetGuidelines(ctx context.Context, condition string) ([]Guideline, error) {
	condition = strings.ToLower(strings.TrimSpace(condition))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Guideline, 0)
	for _, g := range s.guidelines {
		for _, c := range g.Conditions {
			if strings.ToLower(c) == condition {
				matched = append(matched, g)
				break
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].LastUpdated.After(matched[j].LastUpdated)
	})
	return matched, nil
}

// AddSynonyms registers thesaurus expansions for a term.
func (s *MemoryStore) AddSynonyms(term string, synonyms ...string) {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.synonyms[term] = append(s.synonyms[term], synonyms...)
}

// GetSynonyms tokenizes the query and returns expansions for every term the
// thesaurus knows, deduplicated, in token order.
func (s *MemoryStore) GetSynonyms(ctx context.Context, query string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var expansions []string

	for _, token := range strings.Fields(strings.ToLower(query)) {
		token = strings.Trim(token, ".,;:!?")
		for _, syn := range s.synonyms[token] {
			if _, dup := seen[syn]; dup {
				continue
			}
			seen[syn] = struct{}{}
			expansions = append(expansions, syn)
		}
	}

	return expansions, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
