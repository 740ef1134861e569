package weekview

import (
	"slices"
	"sync"
)

// Expansion tracks which cards show extended detail.
type Expansion struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewExpansion returns an empty store.
func NewExpansion() *Expansion {
	return &Expansion{ids: make(map[string]struct{})}
}

// Toggle flips id and returns whether it is now expanded.
func (e *Expansion) Toggle(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.ids[id]; ok {
		delete(e.ids, id)
		return false
	}
	e.ids[id] = struct{}{}
	return true
}

// IsExpanded reports whether id is expanded.
func (e *Expansion) IsExpanded(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.ids[id]
	return ok
}

// Retain drops every id not in keep.
func (e *Expansion) Retain(keep []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.ids {
		if !slices.Contains(keep, id) {
			delete(e.ids, id)
		}
	}
}
