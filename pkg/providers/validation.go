package providers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aibridge/aibridge/pkg/config"
	"github.com/aibridge/aibridge/pkg/logger"
)

const defaultDebounceWindow = 100 * time.Millisecond

// Engine derives the configured-status map from the config store. Every
// store mutation schedules a debounced trailing-edge validation pass; within
// a pass providers run strictly sequentially so a burst of keystrokes never
// fans out into parallel network validations.
type Engine struct {
	registry *Registry
	configs  *config.Store
	resolver *Resolver

	window  time.Duration
	limiter *rate.Limiter

	mu      sync.Mutex
	status  map[string]bool
	dirty   map[string]struct{}
	timer   *time.Timer
	closed  bool
	running sync.WaitGroup

	passMu sync.Mutex // serializes validation passes

	changeMu    sync.Mutex
	onChange    []func(providerID string, configured bool)
	unsubscribe func()
}

// EngineOption adjusts Engine construction.
type EngineOption func(*Engine)

// WithDebounceWindow overrides the debounce window, mainly for tests.
func WithDebounceWindow(window time.Duration) EngineOption {
	return func(e *Engine) { e.window = window }
}

// WithProbeLimit spaces network-validating calls within a pass.
func WithProbeLimit(limit rate.Limit, burst int) EngineOption {
	return func(e *Engine) { e.limiter = rate.NewLimiter(limit, burst) }
}

func NewEngine(registry *Registry, configs *config.Store, resolver *Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		configs:  configs,
		resolver: resolver,
		window:   defaultDebounceWindow,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		status:   make(map[string]bool),
		dirty:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes the engine to config store mutations.
func (e *Engine) Start() {
	e.unsubscribe = e.configs.Subscribe(e.markDirty)
}

// Refresh validates every registered provider in one immediate pass,
// seeding the status map before any store mutation arrives.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	for _, d := range e.registry.List() {
		e.dirty[d.ID] = struct{}{}
	}
	e.mu.Unlock()
	e.runPass(ctx)
}

// Flush blocks until every pass scheduled so far has run. Store mutations
// notify synchronously, so a Set followed by Flush observes the resulting
// status.
func (e *Engine) Flush() {
	e.running.Wait()
}

// Close stops the scheduler and detaches from the store. Pending passes run
// to completion.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.mu.Lock()
	e.closed = true
	if e.timer != nil {
		if e.timer.Stop() {
			e.running.Done()
		}
		e.timer = nil
	}
	e.mu.Unlock()
	e.running.Wait()
}

// OnChange registers a callback fired once per provider whose configured
// value actually changed during a pass.
func (e *Engine) OnChange(fn func(providerID string, configured bool)) {
	e.changeMu.Lock()
	e.onChange = append(e.onChange, fn)
	e.changeMu.Unlock()
}

// ConfiguredStatus returns a snapshot of the derived status map.
func (e *Engine) ConfiguredStatus() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.status))
	for k, v := range e.status {
		out[k] = v
	}
	return out
}

// IsConfigured reports the last computed status for one provider.
func (e *Engine) IsConfigured(providerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status[providerID]
}

// markDirty implements the explicit debounce scheduler: remember the
// provider, cancel any pending timer and reschedule. Only the trailing edge
// of a mutation burst triggers a pass.
func (e *Engine) markDirty(providerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.dirty[providerID] = struct{}{}
	if e.timer != nil && e.timer.Stop() {
		// cancelled a pending pass; its Done will never fire
		e.running.Done()
	}
	e.running.Add(1)
	e.timer = time.AfterFunc(e.window, func() {
		defer e.running.Done()
		e.runPass(context.Background())
	})
}

func (e *Engine) runPass(ctx context.Context) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	e.mu.Lock()
	ids := make([]string, 0, len(e.dirty))
	for id := range e.dirty {
		ids = append(ids, id)
	}
	e.dirty = make(map[string]struct{})
	e.mu.Unlock()

	type change struct {
		id         string
		configured bool
	}
	var changes []change

	// One in-flight validation at a time.
	for _, id := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		result := e.ValidateProvider(ctx, id)

		e.mu.Lock()
		previous, known := e.status[id]
		if !known || previous != result.Valid {
			e.status[id] = result.Valid
			changes = append(changes, change{id: id, configured: result.Valid})
		}
		e.mu.Unlock()
	}

	if len(changes) == 0 {
		return
	}
	e.changeMu.Lock()
	callbacks := make([]func(string, bool), len(e.onChange))
	copy(callbacks, e.onChange)
	e.changeMu.Unlock()
	for _, c := range changes {
		for _, fn := range callbacks {
			fn(c.id, c.configured)
		}
	}
}

// ValidateProvider runs one provider's validator against its current config.
// Local providers have no remote credentials: their configured state
// collapses to runtime availability. Validator errors and panics are folded
// into an invalid result, never propagated.
func (e *Engine) ValidateProvider(ctx context.Context, providerID string) ValidationResult {
	d, ok := e.registry.Get(providerID)
	if !ok {
		return ValidationResult{Valid: false, Reason: "unknown provider: " + providerID}
	}

	if d.IsLocal() {
		available := e.resolver.IsAvailable(ctx, providerID)
		if !available {
			return ValidationResult{Valid: false, Reason: "local runtime is not available"}
		}
		return ValidationResult{Valid: true}
	}

	return safeValidate(ctx, d, e.configs.Get(providerID))
}

func safeValidate(ctx context.Context, d *Descriptor, cfg Config) (result ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := NormalizeMessage(rec)
			logger.WarnCF("validation", "validator panicked", map[string]any{
				"provider": d.ID,
				"panic":    msg,
			})
			result = ValidationResult{Valid: false, Reason: msg, Errors: []string{msg}}
		}
	}()
	return d.Validate(ctx, cfg)
}
