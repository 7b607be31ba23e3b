package providers

import (
	"context"
	"sync"

	"github.com/aibridge/aibridge/pkg/logger"
)

// Resolver evaluates per-descriptor availability predicates to build the
// "available providers" view. A descriptor with no predicate is always
// available; a predicate that errors or panics marks only that descriptor
// unavailable and never aborts the rest of the pass.
type Resolver struct {
	registry *Registry

	mu    sync.RWMutex
	known map[string]bool
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry, known: make(map[string]bool)}
}

// Refresh re-evaluates every descriptor's predicate and caches the results.
// Descriptors are static, so callers refresh rarely (startup, or when a local
// runtime attaches).
func (r *Resolver) Refresh(ctx context.Context) {
	results := make(map[string]bool)
	for _, d := range r.registry.List() {
		results[d.ID] = r.evaluate(ctx, d)
	}

	r.mu.Lock()
	r.known = results
	r.mu.Unlock()
}

func (r *Resolver) evaluate(ctx context.Context, d *Descriptor) (available bool) {
	if d.IsAvailable == nil {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.WarnCF("availability", "availability predicate panicked", map[string]any{
				"provider": d.ID,
				"panic":    NormalizeMessage(rec),
			})
			available = false
		}
	}()

	ok, err := d.IsAvailable(ctx)
	if err != nil {
		logger.DebugCF("availability", "availability predicate failed", map[string]any{
			"provider": d.ID,
			"error":    err.Error(),
		})
		return false
	}
	return ok
}

// IsAvailable reports the cached availability of one provider, evaluating its
// predicate on a cache miss.
func (r *Resolver) IsAvailable(ctx context.Context, id string) bool {
	r.mu.RLock()
	cached, ok := r.known[id]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	d, found := r.registry.Get(id)
	if !found {
		return false
	}
	result := r.evaluate(ctx, d)

	r.mu.Lock()
	r.known[id] = result
	r.mu.Unlock()
	return result
}

// Available returns every usable descriptor, in catalog order.
func (r *Resolver) Available(ctx context.Context) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.registry.List() {
		if r.IsAvailable(ctx, d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// AvailableByCategory is the category-filtered view consumed by the UI.
func (r *Resolver) AvailableByCategory(ctx context.Context, category Category) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.registry.ByCategory(category) {
		if r.IsAvailable(ctx, d.ID) {
			out = append(out, d)
		}
	}
	return out
}
