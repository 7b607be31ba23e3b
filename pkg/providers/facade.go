package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aibridge/aibridge/pkg/logger"
)

// Request carries one generation call through the facade. Input is the text
// to synthesize, the audio path to transcribe, the prompt for a single-turn
// chat, or the text to embed; Messages overrides Input for multi-turn chat.
type Request struct {
	Provider  string
	Model     string
	Input     string
	Voice     string
	Messages  []ChatMessage
	Overrides map[string]any
}

// Result is the normalized outcome of one generation call; exactly one field
// is populated, matching the provider's category.
type Result struct {
	Audio      []byte
	Text       string
	Chat       *ChatResponse
	Embeddings [][]float64
}

// Facade resolves a descriptor into a live provider instance and performs a
// capability call. Every error leaving the facade is classified and carries a
// stable, non-empty message.
type Facade struct {
	registry *Registry
	configs  ConfigSource
}

func NewFacade(registry *Registry, configs ConfigSource) *Facade {
	return &Facade{registry: registry, configs: configs}
}

// Generate performs the capability call for req.Provider. Construction
// failure is fatal for this call and never retried here; retries are always
// caller-initiated repeat calls.
func (f *Facade) Generate(ctx context.Context, req Request) (*Result, error) {
	callID := uuid.NewString()
	logger.DebugCF("facade", "generate", map[string]any{
		"call":     callID,
		"provider": req.Provider,
		"model":    req.Model,
	})

	d, ok := f.registry.Get(req.Provider)
	if !ok {
		return nil, &Error{Kind: KindProviderInit, Message: "unknown provider: " + req.Provider}
	}

	cfg := mergeOptions(f.configs.Get(req.Provider), req.Overrides)
	if req.Model != "" {
		cfg["model"] = req.Model
	}

	instance, err := d.Create(cfg)
	if err != nil {
		return nil, &Error{Kind: KindProviderInit, Message: NormalizeMessage(err)}
	}

	result, err := f.dispatch(ctx, d, instance, cfg, req)
	if err != nil {
		classified := Classify(err)
		logger.WarnCF("facade", "generate failed", map[string]any{
			"call":     callID,
			"provider": req.Provider,
			"kind":     string(classified.Kind),
			"error":    classified.Message,
		})
		return nil, classified
	}
	return result, nil
}

func (f *Facade) dispatch(ctx context.Context, d *Descriptor, instance any, cfg Config, req Request) (*Result, error) {
	switch d.Category {
	case CategorySpeech:
		synth, ok := instance.(Synthesizer)
		if !ok {
			return nil, wrongShape(d, "Synthesizer", instance)
		}
		voice := req.Voice
		if voice == "" {
			voice = StringOption(cfg, "voice", "")
		}
		audio, err := synth.Synthesize(ctx, req.Input, voice, voiceSettingsFrom(cfg))
		if err != nil {
			return nil, err
		}
		return &Result{Audio: audio}, nil

	case CategoryTranscription:
		tr, ok := instance.(Transcriber)
		if !ok {
			return nil, wrongShape(d, "Transcriber", instance)
		}
		transcription, err := tr.Transcribe(ctx, req.Input)
		if err != nil {
			return nil, err
		}
		return &Result{Text: transcription.Text}, nil

	case CategoryChat:
		chatter, ok := instance.(Chatter)
		if !ok {
			return nil, wrongShape(d, "Chatter", instance)
		}
		messages := req.Messages
		if len(messages) == 0 {
			messages = []ChatMessage{{Role: "user", Content: req.Input}}
		}
		resp, err := chatter.Chat(ctx, messages, StringOption(cfg, "model", req.Model), cfg)
		if err != nil {
			return nil, err
		}
		return &Result{Chat: resp, Text: resp.Content}, nil

	case CategoryEmbed:
		embedder, ok := instance.(Embedder)
		if !ok {
			return nil, wrongShape(d, "Embedder", instance)
		}
		vectors, err := embedder.Embed(ctx, []string{req.Input}, StringOption(cfg, "model", req.Model))
		if err != nil {
			return nil, err
		}
		return &Result{Embeddings: vectors}, nil
	}
	return nil, &Error{Kind: KindProviderInit, Message: fmt.Sprintf("provider %s has unsupported category %s", d.ID, d.Category)}
}

func wrongShape(d *Descriptor, want string, got any) error {
	return &Error{
		Kind:    KindProviderInit,
		Message: fmt.Sprintf("provider %s produced %T, want %s", d.ID, got, want),
	}
}

// Models lists a provider's models. Absence of the capability surfaces the
// ErrCapabilityUnsupported sentinel; callers should branch on Capabilities
// before calling. Results are fresh on every call.
func (f *Facade) Models(ctx context.Context, providerID string) ([]ModelInfo, error) {
	d, ok := f.registry.Get(providerID)
	if !ok {
		return nil, &Error{Kind: KindProviderInit, Message: "unknown provider: " + providerID}
	}
	if d.ListModels == nil {
		return nil, ErrCapabilityUnsupported
	}
	models, err := d.ListModels(ctx, f.configs.Get(providerID))
	if err != nil {
		return nil, Classify(err)
	}
	return models, nil
}

// Voices lists a speech provider's voices, under the same contract as Models.
func (f *Facade) Voices(ctx context.Context, providerID string) ([]VoiceInfo, error) {
	d, ok := f.registry.Get(providerID)
	if !ok {
		return nil, &Error{Kind: KindProviderInit, Message: "unknown provider: " + providerID}
	}
	if d.ListVoices == nil {
		return nil, ErrCapabilityUnsupported
	}
	voices, err := d.ListVoices(ctx, f.configs.Get(providerID))
	if err != nil {
		return nil, Classify(err)
	}
	return voices, nil
}

// mergeOptions lays overrides over the stored config, overrides winning
// field by field. The voiceSettings group merges one level deep; everything
// else is a shallow replace.
func mergeOptions(stored, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(stored)+len(overrides))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range overrides {
		if k == "voiceSettings" {
			merged[k] = mergeVoiceSettings(stored[k], v)
			continue
		}
		merged[k] = v
	}
	return merged
}

func mergeVoiceSettings(stored, override any) map[string]any {
	out := make(map[string]any, 3)
	if base, ok := stored.(map[string]any); ok {
		for k, v := range base {
			out[k] = v
		}
	}
	if patch, ok := override.(map[string]any); ok {
		for k, v := range patch {
			out[k] = v
		}
	}
	return out
}

// voiceSettingsFrom reads the voiceSettings group out of a merged config,
// falling back to the documented defaults per field.
func voiceSettingsFrom(cfg Config) VoiceSettings {
	settings := DefaultVoiceSettings()
	group, ok := cfg["voiceSettings"].(map[string]any)
	if !ok {
		return settings
	}
	settings.Pitch = FloatOption(group, "pitch", settings.Pitch)
	settings.Speed = FloatOption(group, "speed", settings.Speed)
	settings.Volume = FloatOption(group, "volume", settings.Volume)
	return settings
}
