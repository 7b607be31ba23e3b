// Package config owns the per-provider option maps. The Store is the source
// of truth for validation input; everything downstream (configured-status
// maps, available-provider views) is derived state.
package config

import (
	"encoding/json"
	"sync"

	"github.com/aibridge/aibridge/pkg/kvstore"
	"github.com/aibridge/aibridge/pkg/logger"
)

const keyPrefix = "provider."

// DefaultsFunc produces the initial config for a provider id, typically the
// catalog descriptor's DefaultOptions. A nil return means no defaults.
type DefaultsFunc func(providerID string) map[string]any

// Subscriber observes config mutations. Called after the mutation is applied
// and persisted, outside the store lock.
type Subscriber func(providerID string)

// Store holds per-provider configs, lazily defaulted on first access and
// persisted through the external key-value store.
type Store struct {
	kv       kvstore.Store
	defaults DefaultsFunc

	mu      sync.Mutex
	configs map[string]map[string]any

	subMu       sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
}

func NewStore(kv kvstore.Store, defaults DefaultsFunc) *Store {
	return &Store{
		kv:          kv,
		defaults:    defaults,
		configs:     make(map[string]map[string]any),
		subscribers: make(map[int]Subscriber),
	}
}

// Get returns a copy of the provider's config, creating it from defaults on
// first access. Callers never receive the canonical map.
func (s *Store) Get(providerID string) map[string]any {
	s.mu.Lock()
	cfg := s.ensureLocked(providerID)
	out := cloneConfig(cfg)
	s.mu.Unlock()

	applyEnvOverrides(providerID, out)
	return out
}

// Set shallow-merges partial into the provider's config, persists it, and
// notifies subscribers.
func (s *Store) Set(providerID string, partial map[string]any) {
	s.mu.Lock()
	cfg := s.ensureLocked(providerID)
	for k, v := range partial {
		cfg[k] = v
	}
	s.persistLocked(providerID, cfg)
	s.mu.Unlock()

	s.notify(providerID)
}

// Initialize seeds the provider's config from defaults. Idempotent: a
// provider that already has a config is left untouched.
func (s *Store) Initialize(providerID string) {
	s.mu.Lock()
	_, existed := s.configs[providerID]
	if !existed {
		_, existed = s.loadLocked(providerID)
	}
	if !existed {
		s.ensureLocked(providerID)
	}
	s.mu.Unlock()

	if !existed {
		s.notify(providerID)
	}
}

// Subscribe registers a mutation observer and returns its cancel function.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(providerID string) {
	s.subMu.Lock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(providerID)
	}
}

// ensureLocked returns the canonical config map for providerID, loading it
// from the kv store or creating it from defaults. Caller holds s.mu.
func (s *Store) ensureLocked(providerID string) map[string]any {
	if cfg, ok := s.configs[providerID]; ok {
		return cfg
	}
	if cfg, ok := s.loadLocked(providerID); ok {
		return cfg
	}

	var cfg map[string]any
	if s.defaults != nil {
		cfg = s.defaults(providerID)
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}
	s.configs[providerID] = cfg
	s.persistLocked(providerID, cfg)
	return cfg
}

func (s *Store) loadLocked(providerID string) (map[string]any, bool) {
	raw, ok, err := s.kv.Load(keyPrefix + providerID)
	if err != nil {
		logger.WarnCF("config", "failed to load persisted config", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.WarnCF("config", "discarding corrupt persisted config", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
		return nil, false
	}
	s.configs[providerID] = cfg
	return cfg, true
}

func (s *Store) persistLocked(providerID string, cfg map[string]any) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		logger.ErrorCF("config", "failed to serialize config", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
		return
	}
	if err := s.kv.Save(keyPrefix+providerID, raw); err != nil {
		logger.ErrorCF("config", "failed to persist config", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
	}
}

// Known returns the provider ids with a config present in this store or the
// backing kv store.
func (s *Store) Known() []string {
	seen := make(map[string]struct{})

	s.mu.Lock()
	for id := range s.configs {
		seen[id] = struct{}{}
	}
	s.mu.Unlock()

	keys, err := s.kv.Keys()
	if err == nil {
		for _, k := range keys {
			if len(k) > len(keyPrefix) && k[:len(keyPrefix)] == keyPrefix {
				seen[k[len(keyPrefix):]] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

func cloneConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
