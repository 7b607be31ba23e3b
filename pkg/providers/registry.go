package providers

import (
	"fmt"
	"sync"
)

// Registry is the provider descriptor catalog: a keyed collection built once
// during process initialization and passed by reference to every component
// that needs it. There is deliberately no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Descriptor
	ordered []*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Descriptor)}
}

// Register adds a descriptor to the catalog. Ids are unique; re-registering
// an id or registering an incomplete descriptor is an error.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("provider %q is already registered", d.ID)
	}
	r.byID[d.ID] = d
	r.ordered = append(r.ordered, d)
	return nil
}

// MustRegister panics on registration failure. Used for the built-in catalog,
// where a failure is a programming error.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// List returns all descriptors in insertion order. The order is stable for
// display purposes only; nothing may rely on it for correctness.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ByCategory returns the descriptors of one category, in insertion order.
func (r *Registry) ByCategory(category Category) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Descriptor
	for _, d := range r.ordered {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// Len reports the catalog size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
