package providers

import (
	"fmt"
	"sync"
)

// Descriptor pairs a live provider instance with its static capability.
type Descriptor struct {
	Translator Translator
	Capability Capability
}

// Registry holds the configured providers. It is built once at startup from
// the provider table; selection iterates over it on every request.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Add registers a provider. Registration order is preserved and used as the
// final tie-breaker during selection.
func (r *Registry) Add(translator Translator, capability Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := translator.ID()
	if _, exists := r.descriptors[id]; exists {
		return fmt.Errorf("provider %s already registered", id)
	}
	r.descriptors[id] = Descriptor{Translator: translator, Capability: capability}
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// List returns all providers in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

// Close closes every registered provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, id := range r.order {
		if err := r.descriptors[id].Translator.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
