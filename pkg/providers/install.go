package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aibridge/aibridge/pkg/logger"
)

const (
	// syntheticTick is how often the fallback ramp advances when the
	// backend emits no granular progress.
	syntheticTick = 500 * time.Millisecond

	// syntheticCap keeps the fallback ramp below the range reserved for
	// authoritative completion. The ramp may approach but never reach it.
	syntheticCap = 0.90

	// progressGracePeriod keeps a finished entry visible so callers can
	// render 100% before the entry disappears.
	progressGracePeriod = 2 * time.Second
)

// InstallTracker orchestrates long-running local model downloads. State is
// per (provider, model) pair; installs for different models proceed fully
// concurrently.
type InstallTracker struct {
	registry *Registry
	configs  ConfigSource
	timeout  time.Duration
	grace    time.Duration

	mu       sync.Mutex
	loading  map[string]struct{}     // provider/model keys currently installing
	progress map[string]ProgressInfo // ephemeral entries, removed after grace
}

// installKey scopes tracker state to the (provider, model) pair so two
// providers offering the same model id never share an entry.
func installKey(providerID, modelID string) string {
	return providerID + "/" + modelID
}

// ConfigSource is the minimal surface the tracker and facade need from the
// config store.
type ConfigSource interface {
	Get(providerID string) map[string]any
}

// TrackerOption adjusts InstallTracker construction.
type TrackerOption func(*InstallTracker)

// WithInstallTimeout bounds how long one install may run. Zero (the default)
// imposes no tracker-side limit; the caller's context governs.
func WithInstallTimeout(d time.Duration) TrackerOption {
	return func(t *InstallTracker) { t.timeout = d }
}

// WithProgressGrace adjusts how long a finished entry stays visible before
// it is removed.
func WithProgressGrace(d time.Duration) TrackerOption {
	return func(t *InstallTracker) { t.grace = d }
}

func NewInstallTracker(registry *Registry, configs ConfigSource, opts ...TrackerOption) *InstallTracker {
	t := &InstallTracker{
		registry: registry,
		configs:  configs,
		grace:    progressGracePeriod,
		loading:  make(map[string]struct{}),
		progress: make(map[string]ProgressInfo),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Install downloads and loads a model through the provider's runtime. A
// second call for a model already installing is a no-op; the loading-set
// membership check is the only mutual exclusion. Install blocks until the
// model is loaded or the load fails.
func (t *InstallTracker) Install(ctx context.Context, providerID, modelID string) error {
	d, ok := t.registry.Get(providerID)
	if !ok {
		return &Error{Kind: KindInstall, Message: "unknown provider: " + providerID}
	}
	if d.LoadModel == nil {
		return ErrCapabilityUnsupported
	}

	key := installKey(providerID, modelID)
	t.mu.Lock()
	if _, busy := t.loading[key]; busy {
		t.mu.Unlock()
		logger.DebugCF("install", "install already in flight", map[string]any{
			"provider": providerID,
			"model":    modelID,
		})
		return nil
	}
	t.loading[key] = struct{}{}
	t.progress[key] = ProgressInfo{}
	t.mu.Unlock()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	return t.run(ctx, d, providerID, modelID)
}

func (t *InstallTracker) run(ctx context.Context, d *Descriptor, providerID, modelID string) error {
	logger.InfoCF("install", "starting model install", map[string]any{
		"provider": providerID,
		"model":    modelID,
	})

	key := installKey(providerID, modelID)

	// The authoritative subscription is a scoped acquisition: released on
	// every exit path below.
	var unsubscribe func()
	if d.SubscribeProgress != nil {
		var err error
		unsubscribe, err = d.SubscribeProgress(func(ev ProgressEvent) {
			if !progressEventMatches(ev, modelID) {
				return
			}
			t.apply(key, eventToProgress(ev), false)
		})
		if err != nil {
			logger.WarnCF("install", "progress subscription failed, relying on synthetic ramp", map[string]any{
				"model": modelID,
				"error": err.Error(),
			})
		}
	}

	rampDone := make(chan struct{})
	go t.syntheticRamp(key, rampDone)

	err := d.LoadModel(ctx, t.configs.Get(providerID), modelID)

	close(rampDone)
	if unsubscribe != nil {
		unsubscribe()
	}

	t.mu.Lock()
	delete(t.loading, key)
	t.mu.Unlock()

	if err != nil {
		t.mu.Lock()
		delete(t.progress, key)
		t.mu.Unlock()
		logger.ErrorCF("install", "model install failed", map[string]any{
			"provider": providerID,
			"model":    modelID,
			"error":    err.Error(),
		})
		return &Error{Kind: KindInstall, Message: NormalizeMessage(err)}
	}

	// Factory resolution is as authoritative as a done event.
	t.apply(key, ProgressInfo{Progress: 1, Done: true}, false)
	t.scheduleRemoval(key)

	logger.InfoCF("install", "model installed", map[string]any{
		"provider": providerID,
		"model":    modelID,
	})
	return nil
}

// syntheticRamp nudges progress toward the cap on a fixed tick, covering
// backends that emit no granular progress. It stops as soon as the install
// finishes and never advances an entry that is already at or past the cap.
func (t *InstallTracker) syntheticRamp(key string, done <-chan struct{}) {
	ticker := time.NewTicker(syntheticTick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			current, ok := t.progress[key]
			t.mu.Unlock()
			if !ok || current.Done || current.Progress >= syntheticCap {
				continue
			}
			next := current
			// close half the remaining distance to the cap
			next.Progress = current.Progress + (syntheticCap-current.Progress)/2
			t.apply(key, next, true)
		}
	}
}

// apply funnels every progress write, from either source, through the merge
// policy under the tracker lock.
func (t *InstallTracker) apply(key string, incoming ProgressInfo, synthetic bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.progress[key]
	if !ok {
		// entry already removed (failed install); drop the straggler
		return
	}
	t.progress[key] = mergeProgress(current, incoming, synthetic)
}

// mergeProgress is the single merge policy for the two racing progress
// sources: last write wins, except that the synthetic ramp is capped below
// the authoritative-completion range, nothing overwrites a done entry, and
// progress never regresses.
func mergeProgress(current, incoming ProgressInfo, synthetic bool) ProgressInfo {
	if current.Done {
		return current
	}
	if synthetic {
		if incoming.Progress >= syntheticCap {
			incoming.Progress = syntheticCap - 0.001
		}
		incoming.Done = false
	}
	if incoming.Progress < current.Progress {
		incoming.Progress = current.Progress
	}
	if incoming.Loaded < current.Loaded {
		incoming.Loaded = current.Loaded
	}
	if incoming.Total == 0 {
		incoming.Total = current.Total
	}
	return incoming
}

func (t *InstallTracker) scheduleRemoval(key string) {
	time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if entry, ok := t.progress[key]; ok && entry.Done {
			delete(t.progress, key)
		}
	})
}

// Progress returns the ephemeral progress entry for a provider's model, if
// present.
func (t *InstallTracker) Progress(providerID, modelID string) (ProgressInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.progress[installKey(providerID, modelID)]
	return entry, ok
}

// Installing reports whether a model install is currently in flight.
func (t *InstallTracker) Installing(providerID, modelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.loading[installKey(providerID, modelID)]
	return ok
}

// progressEventMatches filters the shared event stream down to the target
// model: backends report per-file names that contain or equal the model id.
func progressEventMatches(ev ProgressEvent, modelID string) bool {
	if ev.Filename == modelID {
		return true
	}
	return ev.Filename != "" && (strings.Contains(ev.Filename, modelID) || strings.Contains(modelID, ev.Filename))
}

// eventToProgress converts a wire tuple (0..100 progress) into the 0..1
// ProgressInfo shape.
func eventToProgress(ev ProgressEvent) ProgressInfo {
	info := ProgressInfo{
		Loaded: ev.CurrentSize,
		Total:  ev.TotalSize,
		Done:   ev.Done,
	}
	switch {
	case ev.Done:
		info.Progress = 1
	case ev.Progress > 0:
		info.Progress = ev.Progress / 100
	}
	return info
}
