// Package pathlock serializes work on the same filesystem path.
package pathlock

import (
	"path/filepath"
	"sync"
)

// Registry hands out one mutex per cleaned path. Entries are reference
// counted and removed when the last holder unlocks.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Default is the process-wide registry.
var Default = New()

// Lock blocks until path is free and returns the function that releases it.
func (r *Registry) Lock(path string) (unlock func()) {
	key := filepath.Clean(path)

	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &entry{}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// Len reports how many paths currently have holders or waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
