package engine

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoEngines is returned when resolution produces no usable engine.
var ErrNoEngines = errors.New("no recognition engines available")

// Registry maps engine identifiers to implementations. Safe for concurrent
// use; registration typically happens once at startup.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry builds a registry pre-populated with the given engines.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// Register adds or replaces an engine under its own name.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Name()] = e
}

// Get looks up an engine by identifier.
func (r *Registry) Get(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the engines for the preferred identifiers in caller
// priority order. Unknown identifiers and engines reporting themselves
// unavailable are skipped; if nothing remains, ErrNoEngines is returned.
func (r *Registry) Resolve(preferred []string) ([]Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved := make([]Engine, 0, len(preferred))
	for _, name := range preferred {
		e, ok := r.engines[name]
		if !ok {
			continue
		}
		if probe, ok := e.(AvailabilityChecker); ok && !probe.Available() {
			continue
		}
		resolved = append(resolved, e)
	}
	if len(resolved) == 0 {
		return nil, ErrNoEngines
	}
	return resolved, nil
}
