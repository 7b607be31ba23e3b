package providers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aibridge/aibridge/pkg/config"
	"github.com/aibridge/aibridge/pkg/kvstore"
)

func testEngine(t *testing.T, r *Registry, opts ...EngineOption) (*Engine, *config.Store) {
	t.Helper()
	store := config.NewStore(kvstore.NewMemoryStore(), nil)
	opts = append([]EngineOption{WithDebounceWindow(10 * time.Millisecond)}, opts...)
	e := NewEngine(r, store, NewResolver(r), opts...)
	e.Start()
	t.Cleanup(e.Close)
	return e, store
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBurstOfMutationsRunsOnePass(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry()
	d := testDescriptor("openai", CategoryChat)
	d.Validate = func(_ context.Context, cfg Config) ValidationResult {
		calls.Add(1)
		return RequireFields([2]string{"apiKey", "API key"})(context.Background(), cfg)
	}
	r.MustRegister(d)

	_, store := testEngine(t, r)

	// Rapid keystroke burst: only the trailing edge should validate.
	for _, key := range []string{"s", "sk", "sk-", "sk-abc"} {
		store.Set("openai", map[string]any{"apiKey": key})
	}

	waitFor(t, func() bool { return calls.Load() > 0 }, "no validation pass ran")
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("validator ran %d times for one burst, want 1", got)
	}
}

func TestRefreshSeedsStatusMap(t *testing.T) {
	r := NewRegistry()
	keyed := testDescriptor("openai", CategoryChat)
	keyed.Validate = RequireFields([2]string{"apiKey", "API key"})
	keyless := testDescriptor("ollama", CategoryChat)
	keyless.Validate = AlwaysValid
	r.MustRegister(keyed)
	r.MustRegister(keyless)

	e, _ := testEngine(t, r)
	if len(e.ConfiguredStatus()) != 0 {
		t.Fatal("status map populated before any pass")
	}

	e.Refresh(context.Background())

	status := e.ConfiguredStatus()
	if len(status) != 2 {
		t.Fatalf("status has %d entries after Refresh, want 2", len(status))
	}
	if status["openai"] {
		t.Error("keyed provider configured with an empty config")
	}
	if !status["ollama"] {
		t.Error("keyless provider not configured after Refresh")
	}
}

func TestFlushObservesScheduledPass(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("openai", CategoryChat)
	d.Validate = RequireFields([2]string{"apiKey", "API key"})
	r.MustRegister(d)

	e, store := testEngine(t, r)

	store.Set("openai", map[string]any{"apiKey": "sk-abc"})
	e.Flush()
	if !e.IsConfigured("openai") {
		t.Error("status not settled after Flush")
	}

	store.Set("openai", map[string]any{"apiKey": ""})
	e.Flush()
	if e.IsConfigured("openai") {
		t.Error("Flush returned before the emptied key was revalidated")
	}
}

func TestIsConfiguredRequiresAPIKey(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("groq", CategoryChat)
	d.Validate = RequireFields([2]string{"apiKey", "API key"})
	r.MustRegister(d)

	e, store := testEngine(t, r)

	store.Set("groq", map[string]any{"apiKey": ""})
	waitFor(t, func() bool {
		_, known := e.ConfiguredStatus()["groq"]
		return known
	}, "status never computed")
	if e.IsConfigured("groq") {
		t.Error("empty API key reported configured")
	}

	result := e.ValidateProvider(context.Background(), "groq")
	if result.Valid || result.Reason != "API key is required" {
		t.Errorf("ValidateProvider = %+v, want 'API key is required'", result)
	}

	store.Set("groq", map[string]any{"apiKey": "gsk_live"})
	waitFor(t, func() bool { return e.IsConfigured("groq") }, "valid key never reported configured")
}

func TestOnChangeFiresOnlyOnTransitions(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("elevenlabs", CategorySpeech)
	d.Validate = RequireFields([2]string{"apiKey", "API key"})
	r.MustRegister(d)

	e, store := testEngine(t, r)

	var mu sync.Mutex
	var seen []bool
	e.OnChange(func(id string, configured bool) {
		mu.Lock()
		seen = append(seen, configured)
		mu.Unlock()
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}

	store.Set("elevenlabs", map[string]any{"apiKey": ""})
	waitFor(t, func() bool { return count() == 1 }, "first transition not notified")

	// Same outcome again: no notification.
	store.Set("elevenlabs", map[string]any{"apiKey": "  "})
	time.Sleep(100 * time.Millisecond)
	if count() != 1 {
		t.Errorf("unchanged status re-notified, %d notifications", count())
	}

	store.Set("elevenlabs", map[string]any{"apiKey": "xi-key"})
	waitFor(t, func() bool { return count() == 2 }, "transition to configured not notified")

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != false || seen[1] != true {
		t.Errorf("notifications = %v, want [false true]", seen)
	}
}

func TestLocalProviderCollapsesToAvailability(t *testing.T) {
	r := NewRegistry()
	attached := false
	d := testDescriptor("app-local-kokoro", CategorySpeech)
	d.IsAvailable = func(context.Context) (bool, error) { return attached, nil }
	d.Validate = func(context.Context, Config) ValidationResult {
		t.Error("local provider validator must not run")
		return ValidationResult{}
	}
	r.MustRegister(d)

	store := config.NewStore(kvstore.NewMemoryStore(), nil)
	resolver := NewResolver(r)
	e := NewEngine(r, store, resolver)

	result := e.ValidateProvider(context.Background(), "app-local-kokoro")
	if result.Valid {
		t.Error("local provider configured while runtime is detached")
	}

	attached = true
	resolver.Refresh(context.Background())
	result = e.ValidateProvider(context.Background(), "app-local-kokoro")
	if !result.Valid {
		t.Errorf("local provider not configured with runtime attached: %+v", result)
	}
}

func TestPanickingValidatorFoldsToInvalid(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("openrouter", CategoryChat)
	d.Validate = func(context.Context, Config) ValidationResult {
		panic("validator bug")
	}
	r.MustRegister(d)

	store := config.NewStore(kvstore.NewMemoryStore(), nil)
	e := NewEngine(r, store, NewResolver(r))

	result := e.ValidateProvider(context.Background(), "openrouter")
	if result.Valid {
		t.Error("panicking validator reported valid")
	}
	if result.Reason != "validator bug" {
		t.Errorf("Reason = %q, want the panic message", result.Reason)
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	store := config.NewStore(kvstore.NewMemoryStore(), nil)
	e := NewEngine(NewRegistry(), store, NewResolver(NewRegistry()))
	if result := e.ValidateProvider(context.Background(), "ghost"); result.Valid {
		t.Error("unknown provider validated")
	}
}
