package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Workspace is the shared scratch space of a collaboration. All participants
// read and write it concurrently, so every access goes through the mutex.
type Workspace struct {
	mu      sync.RWMutex
	entries map[string]string
	order   []string
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{entries: make(map[string]string)}
}

// Put records an entry under the given key, overwriting any previous value.
// First-write order is preserved for rendering.
func (w *Workspace) Put(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.entries[key]; !exists {
		w.order = append(w.order, key)
	}
	w.entries[key] = value
}

// Get returns the entry under key and whether it exists.
func (w *Workspace) Get(key string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	value, ok := w.entries[key]
	return value, ok
}

// Len returns the number of entries.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Keys returns the entry keys in first-write order.
func (w *Workspace) Keys() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	keys := make([]string, len(w.order))
	copy(keys, w.order)
	return keys
}

// Snapshot renders the workspace as prompt-ready text. Entries appear in
// first-write order so concurrent runs still produce deterministic layouts
// once writes settle.
func (w *Workspace) Snapshot() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.order) == 0 {
		return "(empty workspace)"
	}
	var sb strings.Builder
	for _, key := range w.order {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", key, w.entries[key])
	}
	return strings.TrimSpace(sb.String())
}

// SortedKeys returns the entry keys in lexical order.
func (w *Workspace) SortedKeys() []string {
	keys := w.Keys()
	sort.Strings(keys)
	return keys
}
