package refresh

import (
	"sort"
	"strings"
	"sync"
)

// PageRegistry exposes the per-page "loaded" flags of the presentation layer.
type PageRegistry interface {
	// Pages lists every registered page id.
	Pages() []string
	// MarkUnloaded forces the page to refetch on its next visit.
	MarkUnloaded(page string)
}

// IsListPage reports whether a page shows a collection. Detail pages keep
// their loaded state across a refresh.
func IsListPage(page string) bool {
	return !strings.Contains(page, "-details") && page != "weekly-detail"
}

// MemoryRegistry is an in-process PageRegistry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	loaded map[string]bool
}

// NewMemoryRegistry creates a registry with the given pages marked unloaded.
func NewMemoryRegistry(pages ...string) *MemoryRegistry {
	r := &MemoryRegistry{loaded: make(map[string]bool, len(pages))}
	for _, p := range pages {
		r.loaded[p] = false
	}
	return r
}

// MarkLoaded records that a page has fetched its data.
func (r *MemoryRegistry) MarkLoaded(page string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[page] = true
}

func (r *MemoryRegistry) MarkUnloaded(page string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loaded[page]; ok {
		r.loaded[page] = false
	}
}

// Loaded reports a page's flag.
func (r *MemoryRegistry) Loaded(page string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded[page]
}

func (r *MemoryRegistry) Pages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pages := make([]string, 0, len(r.loaded))
	for p := range r.loaded {
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return pages
}
