package providers

import (
	"context"
	"fmt"
	"strings"
)

// Config is one provider's option map, keyed by option name. The config
// store owns the canonical copy; descriptors only ever read it.
type Config = map[string]any

// Local provider id prefixes. Downstream filters treat providers with these
// prefixes as configured once merely available: they have no remote
// credentials to validate.
const (
	LocalAppPrefix     = "app-local-"
	LocalBrowserPrefix = "browser-local-"
)

// Descriptor is the static record describing one backend. Create, Validate
// and DefaultOptions are required; every other function field is optional and
// its absence means the capability is unsupported.
type Descriptor struct {
	ID          string
	Category    Category
	Tasks       []string
	Name        string
	Description string

	// DefaultOptions produces the initial config for this provider. Pure.
	DefaultOptions func() Config

	// IsAvailable reports whether the backend is usable in the current
	// runtime. Nil means always available.
	IsAvailable func(ctx context.Context) (bool, error)

	// Create builds a live capability-bound instance (Chatter, Synthesizer,
	// Transcriber or Embedder, matching Category). Idempotent per config
	// value; safe to call repeatedly.
	Create func(cfg Config) (any, error)

	// Validate checks cfg for completeness. Must not mutate cfg and must be
	// cheap enough to run on every keystroke.
	Validate func(ctx context.Context, cfg Config) ValidationResult

	// Optional capabilities.
	ListModels func(ctx context.Context, cfg Config) ([]ModelInfo, error)
	ListVoices func(ctx context.Context, cfg Config) ([]VoiceInfo, error)

	// LoadModel downloads and loads a model in the backing runtime. It
	// blocks until the model is usable or the load fails.
	LoadModel func(ctx context.Context, cfg Config, modelID string) error

	// SubscribeProgress attaches a handler to the backend's authoritative
	// download progress stream. The returned function releases the
	// subscription; it must be called on every exit path.
	SubscribeProgress func(handler func(ProgressEvent)) (func(), error)
}

// Capabilities derives the explicit capability set from the populated
// function fields.
func (d *Descriptor) Capabilities() Capabilities {
	return Capabilities{
		CanListModels: d.ListModels != nil,
		CanListVoices: d.ListVoices != nil,
		CanLoadModel:  d.LoadModel != nil,
	}
}

// IsLocal reports whether this descriptor runs on-device, by id prefix
// convention.
func (d *Descriptor) IsLocal() bool {
	return strings.HasPrefix(d.ID, LocalAppPrefix) || strings.HasPrefix(d.ID, LocalBrowserPrefix)
}

func (d *Descriptor) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("descriptor has empty id")
	}
	switch d.Category {
	case CategoryChat, CategoryEmbed, CategorySpeech, CategoryTranscription:
	default:
		return fmt.Errorf("descriptor %q has unknown category %q", d.ID, d.Category)
	}
	if d.DefaultOptions == nil {
		return fmt.Errorf("descriptor %q is missing DefaultOptions", d.ID)
	}
	if d.Create == nil {
		return fmt.Errorf("descriptor %q is missing Create", d.ID)
	}
	if d.Validate == nil {
		return fmt.Errorf("descriptor %q is missing Validate", d.ID)
	}
	return nil
}

// RequireFields is the standard validator for remote providers: each entry
// maps a config field name to its human label, and every listed field must be
// a non-empty string. Failure reasons read "<label> is required".
func RequireFields(fields ...[2]string) func(ctx context.Context, cfg Config) ValidationResult {
	return func(_ context.Context, cfg Config) ValidationResult {
		var errs []string
		for _, f := range fields {
			name, label := f[0], f[1]
			value, _ := cfg[name].(string)
			if strings.TrimSpace(value) == "" {
				errs = append(errs, label+" is required")
			}
		}
		if len(errs) > 0 {
			return ValidationResult{Valid: false, Reason: strings.Join(errs, "; "), Errors: errs}
		}
		return ValidationResult{Valid: true}
	}
}

// AlwaysValid is the validator for local providers, whose configured state
// collapses to availability.
func AlwaysValid(_ context.Context, _ Config) ValidationResult {
	return ValidationResult{Valid: true}
}

// StringOption reads a string option from cfg, falling back to def when the
// option is absent or not a string.
func StringOption(cfg Config, name, def string) string {
	if v, ok := cfg[name].(string); ok && v != "" {
		return v
	}
	return def
}

// FloatOption reads a numeric option from cfg, tolerating JSON's float64
// decoding as well as int values.
func FloatOption(cfg Config, name string, def float64) float64 {
	switch v := cfg[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
