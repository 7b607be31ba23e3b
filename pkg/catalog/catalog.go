// Package catalog assembles the built-in provider registry. It is the only
// place that knows every backend; everything downstream works off the
// registry it returns.
package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/aibridge/aibridge/pkg/chat"
	"github.com/aibridge/aibridge/pkg/embed"
	"github.com/aibridge/aibridge/pkg/ipc"
	"github.com/aibridge/aibridge/pkg/providers"
	"github.com/aibridge/aibridge/pkg/voice"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	ollamaBaseURL     = "http://localhost:11434/v1"
	openaiBaseURL     = "https://api.openai.com/v1"
)

// Deps carries the shared infrastructure descriptors close over. Channel may
// be nil when no local runtime is attached; the local descriptors then
// report unavailable and every runtime-backed operation fails cleanly.
type Deps struct {
	Channel    ipc.Channel
	HTTPClient *http.Client
}

// runtimeChannel returns the attached runtime channel, or a classified
// error so descriptor calls never dereference a nil channel.
func runtimeChannel(deps Deps) (ipc.Channel, error) {
	if deps.Channel == nil {
		return nil, &providers.Error{
			Kind:    providers.KindProviderInit,
			Message: "local audio runtime is not connected",
			Hint:    "start aibridge with --bridge pointing at the runtime websocket",
		}
	}
	return deps.Channel, nil
}

// DefaultRegistry builds the full built-in catalog.
func DefaultRegistry(deps Deps) *providers.Registry {
	r := providers.NewRegistry()

	registerChat(r, deps)
	registerEmbed(r, deps)
	registerSpeech(r, deps)
	registerTranscription(r, deps)

	return r
}

func requireAPIKey() func(context.Context, providers.Config) providers.ValidationResult {
	return providers.RequireFields([2]string{"apiKey", "API key"})
}

func localRuntime(deps Deps) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		return deps.Channel != nil, nil
	}
}

// ollamaReachable probes the local daemon with a short deadline so a
// stopped daemon never stalls availability refresh.
func ollamaReachable(deps Deps) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		client := deps.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaBaseURL+"/models", nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, nil
		}
		resp.Body.Close()
		return resp.StatusCode < 500, nil
	}
}

func registerChat(r *providers.Registry, deps Deps) {
	r.MustRegister(&providers.Descriptor{
		ID:          "anthropic",
		Category:    providers.CategoryChat,
		Tasks:       []string{"chat"},
		Name:        "Anthropic",
		Description: "Claude models via the Anthropic API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "claude-sonnet-4-5"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return chat.NewAnthropicProvider(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", ""),
			), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "openai",
		Category:    providers.CategoryChat,
		Tasks:       []string{"chat"},
		Name:        "OpenAI",
		Description: "GPT models via the OpenAI API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "gpt-4o"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return chat.NewOpenAIProvider(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", openaiBaseURL),
				deps.HTTPClient,
			), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "openrouter",
		Category:    providers.CategoryChat,
		Tasks:       []string{"chat"},
		Name:        "OpenRouter",
		Description: "Many-model gateway speaking the OpenAI protocol",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "openrouter/auto"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return chat.NewCompatProvider(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", openRouterBaseURL),
				deps.HTTPClient,
			), nil
		},
		ListModels: func(ctx context.Context, cfg providers.Config) ([]providers.ModelInfo, error) {
			return chat.ListCompatModels(ctx,
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", openRouterBaseURL),
				deps.HTTPClient,
			)
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "groq",
		Category:    providers.CategoryChat,
		Tasks:       []string{"chat"},
		Name:        "Groq",
		Description: "Fast open-model inference speaking the OpenAI protocol",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "llama-3.3-70b-versatile"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return chat.NewCompatProvider(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", groqBaseURL),
				deps.HTTPClient,
			), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "ollama",
		Category:    providers.CategoryChat,
		Tasks:       []string{"chat"},
		Name:        "Ollama",
		Description: "Local models served by an Ollama daemon",
		DefaultOptions: func() providers.Config {
			return providers.Config{"baseUrl": ollamaBaseURL, "model": "llama3.2"}
		},
		// No key: a reachable daemon is the whole requirement.
		Validate:    providers.AlwaysValid,
		IsAvailable: ollamaReachable(deps),
		Create: func(cfg providers.Config) (any, error) {
			return chat.NewCompatProvider(
				"",
				providers.StringOption(cfg, "baseUrl", ollamaBaseURL),
				deps.HTTPClient,
			), nil
		},
		ListModels: func(ctx context.Context, cfg providers.Config) ([]providers.ModelInfo, error) {
			return chat.ListCompatModels(ctx, "",
				providers.StringOption(cfg, "baseUrl", ollamaBaseURL),
				deps.HTTPClient,
			)
		},
	})
}

func registerEmbed(r *providers.Registry, deps Deps) {
	r.MustRegister(&providers.Descriptor{
		ID:          "openai-embeddings",
		Category:    providers.CategoryEmbed,
		Tasks:       []string{"embed"},
		Name:        "OpenAI Embeddings",
		Description: "Text embedding vectors via the OpenAI API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "text-embedding-3-small"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return embed.NewOpenAIEmbedder(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "baseUrl", ""),
				deps.HTTPClient,
			), nil
		},
	})
}

func registerSpeech(r *providers.Registry, deps Deps) {
	r.MustRegister(&providers.Descriptor{
		ID:          "openai-speech",
		Category:    providers.CategorySpeech,
		Tasks:       []string{"speech"},
		Name:        "OpenAI Speech",
		Description: "Text to speech via the OpenAI API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "tts-1", "voice": "alloy"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return voice.NewSpeechHTTP(
				providers.StringOption(cfg, "baseUrl", openaiBaseURL),
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "model", "tts-1"),
				deps.HTTPClient,
			), nil
		},
		ListVoices: func(context.Context, providers.Config) ([]providers.VoiceInfo, error) {
			return voice.OpenAISpeechVoices(), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "elevenlabs",
		Category:    providers.CategorySpeech,
		Tasks:       []string{"speech"},
		Name:        "ElevenLabs",
		Description: "Text to speech via the ElevenLabs API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "eleven_multilingual_v2"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return voice.NewElevenLabs(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "model", ""),
				deps.HTTPClient,
			), nil
		},
		ListVoices: func(ctx context.Context, cfg providers.Config) ([]providers.VoiceInfo, error) {
			e := voice.NewElevenLabs(
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "model", ""),
				deps.HTTPClient,
			)
			return e.ListVoices(ctx)
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "app-local-kokoro",
		Category:    providers.CategorySpeech,
		Tasks:       []string{"speech"},
		Name:        "Kokoro (on-device)",
		Description: "Offline synthesis through the local audio runtime",
		DefaultOptions: func() providers.Config {
			return providers.Config{
				"model": voice.KokoroModel,
				"voice": "af",
				"voiceSettings": map[string]any{
					"pitch":  float64(0),
					"speed":  1.0,
					"volume": float64(0),
				},
			}
		},
		IsAvailable: localRuntime(deps),
		Validate:    providers.AlwaysValid,
		Create: func(cfg providers.Config) (any, error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.NewKokoroLocal(ch, providers.StringOption(cfg, "model", "")), nil
		},
		ListModels: func(ctx context.Context, _ providers.Config) ([]providers.ModelInfo, error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.ListSpeechModels(ctx, ch)
		},
		ListVoices: func(context.Context, providers.Config) ([]providers.VoiceInfo, error) {
			return voice.KokoroVoices(), nil
		},
		LoadModel: func(ctx context.Context, _ providers.Config, modelID string) error {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return err
			}
			return voice.LoadSpeechModel(ctx, ch, modelID)
		},
		SubscribeProgress: func(handler func(providers.ProgressEvent)) (func(), error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.SubscribeSpeechProgress(ch, handler)
		},
	})
}

func registerTranscription(r *providers.Registry, deps Deps) {
	r.MustRegister(&providers.Descriptor{
		ID:          "openai-whisper",
		Category:    providers.CategoryTranscription,
		Tasks:       []string{"transcription"},
		Name:        "OpenAI Whisper",
		Description: "Speech to text via the OpenAI API",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "whisper-1"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return voice.NewTranscriberHTTP(
				providers.StringOption(cfg, "baseUrl", openaiBaseURL),
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "model", "whisper-1"),
				deps.HTTPClient,
			), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "groq-whisper",
		Category:    providers.CategoryTranscription,
		Tasks:       []string{"transcription"},
		Name:        "Groq Whisper",
		Description: "Fast speech to text on Groq hardware",
		DefaultOptions: func() providers.Config {
			return providers.Config{"apiKey": "", "model": "whisper-large-v3"}
		},
		Validate: requireAPIKey(),
		Create: func(cfg providers.Config) (any, error) {
			return voice.NewTranscriberHTTP(
				providers.StringOption(cfg, "baseUrl", groqBaseURL),
				providers.StringOption(cfg, "apiKey", ""),
				providers.StringOption(cfg, "model", "whisper-large-v3"),
				deps.HTTPClient,
			), nil
		},
	})

	r.MustRegister(&providers.Descriptor{
		ID:          "app-local-whisper",
		Category:    providers.CategoryTranscription,
		Tasks:       []string{"transcription"},
		Name:        "Whisper (on-device)",
		Description: "Offline transcription through the local audio runtime",
		DefaultOptions: func() providers.Config {
			return providers.Config{"model": "tiny.en"}
		},
		IsAvailable: localRuntime(deps),
		Validate:    providers.AlwaysValid,
		Create: func(cfg providers.Config) (any, error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.NewWhisperLocal(ch, providers.StringOption(cfg, "model", "")), nil
		},
		ListModels: func(ctx context.Context, _ providers.Config) ([]providers.ModelInfo, error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.ListTranscriptionModels(ctx, ch)
		},
		LoadModel: func(ctx context.Context, _ providers.Config, modelID string) error {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return err
			}
			return voice.LoadTranscriptionModel(ctx, ch, modelID)
		},
		SubscribeProgress: func(handler func(providers.ProgressEvent)) (func(), error) {
			ch, err := runtimeChannel(deps)
			if err != nil {
				return nil, err
			}
			return voice.SubscribeTranscriptionProgress(ch, handler)
		},
	})
}
