// Package voice implements the speech and transcription backends: on-device
// runtimes reached over the ipc bridge and cloud endpoints reached over
// HTTP.
package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aibridge/aibridge/pkg/ipc"
	"github.com/aibridge/aibridge/pkg/logger"
	"github.com/aibridge/aibridge/pkg/providers"
)

const (
	// KokoroModel is the default on-device synthesis model.
	KokoroModel = "hexgrad/Kokoro-82M"

	// EspeakModel is the zero-download fallback engine. It ships with the
	// runtime and is always reported installed.
	EspeakModel = "espeak-ng"

	kokoroSampleRate = 24000
	espeakSampleRate = 22050
)

// KokoroLocal synthesizes speech through the local audio runtime over the
// ipc bridge.
type KokoroLocal struct {
	channel ipc.Channel
	model   string
}

func NewKokoroLocal(channel ipc.Channel, model string) *KokoroLocal {
	if model == "" {
		model = KokoroModel
	}
	return &KokoroLocal{channel: channel, model: model}
}

type kokoroSynthesizeArgs struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Model      string  `json:"model"`
	Pitch      float64 `json:"pitch"`
	Speed      float64 `json:"speed"`
	Volume     float64 `json:"volume"`
	SampleRate int     `json:"sampleRate"`
}

type kokoroSynthesizeResult struct {
	Audio      string `json:"audio"` // base64 PCM/WAV from the runtime
	SampleRate int    `json:"sampleRate"`
}

func (k *KokoroLocal) Synthesize(ctx context.Context, text, voice string, settings providers.VoiceSettings) ([]byte, error) {
	if voice == "" {
		voice = "af"
	}
	sampleRate := kokoroSampleRate
	if k.model == EspeakModel {
		sampleRate = espeakSampleRate
	}

	logger.DebugCF("voice", "synthesizing via local runtime", map[string]any{
		"model":       k.model,
		"voice":       voice,
		"text_length": len(text),
	})

	raw, err := k.channel.Invoke(ctx, "tts.synthesize", kokoroSynthesizeArgs{
		Text:       text,
		Voice:      voice,
		Model:      k.model,
		Pitch:      settings.Pitch,
		Speed:      settings.Speed,
		Volume:     settings.Volume,
		SampleRate: sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tts.synthesize: %w", err)
	}

	var result kokoroSynthesizeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tts.synthesize result: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(result.Audio)
	if err != nil {
		return nil, fmt.Errorf("decoding synthesized audio: %w", err)
	}
	return audio, nil
}

// KokoroVoices is the static voice catalog of the on-device synthesizer.
// The runtime ships these with the model; there is nothing to query.
func KokoroVoices() []providers.VoiceInfo {
	english := []providers.Language{{Code: "en-us", Title: "English (US)"}}
	british := []providers.Language{{Code: "en-gb", Title: "English (GB)"}}
	japanese := []providers.Language{{Code: "ja", Title: "Japanese"}}
	mandarin := []providers.Language{{Code: "zh", Title: "Mandarin"}}

	return []providers.VoiceInfo{
		{ID: "af", Name: "Default (American Female)", Provider: "app-local-kokoro", Gender: "female", Languages: english, ModelID: KokoroModel},
		{ID: "af_bella", Name: "Bella", Provider: "app-local-kokoro", Gender: "female", Languages: english, ModelID: KokoroModel},
		{ID: "af_nicole", Name: "Nicole", Provider: "app-local-kokoro", Gender: "female", Languages: english, ModelID: KokoroModel},
		{ID: "af_sarah", Name: "Sarah", Provider: "app-local-kokoro", Gender: "female", Languages: english, ModelID: KokoroModel},
		{ID: "af_sky", Name: "Sky", Provider: "app-local-kokoro", Gender: "female", Languages: english, ModelID: KokoroModel},
		{ID: "am_adam", Name: "Adam", Provider: "app-local-kokoro", Gender: "male", Languages: english, ModelID: KokoroModel},
		{ID: "am_michael", Name: "Michael", Provider: "app-local-kokoro", Gender: "male", Languages: english, ModelID: KokoroModel},
		{ID: "bf_emma", Name: "Emma", Provider: "app-local-kokoro", Gender: "female", Languages: british, ModelID: KokoroModel},
		{ID: "bf_isabella", Name: "Isabella", Provider: "app-local-kokoro", Gender: "female", Languages: british, ModelID: KokoroModel},
		{ID: "bm_george", Name: "George", Provider: "app-local-kokoro", Gender: "male", Languages: british, ModelID: KokoroModel},
		{ID: "bm_lewis", Name: "Lewis", Provider: "app-local-kokoro", Gender: "male", Languages: british, ModelID: KokoroModel},
		{ID: "jf_alpha", Name: "Alpha", Provider: "app-local-kokoro", Gender: "female", Languages: japanese, ModelID: KokoroModel},
		{ID: "zf_xiaobei", Name: "Xiaobei", Provider: "app-local-kokoro", Gender: "female", Languages: mandarin, ModelID: KokoroModel},
	}
}

type runtimeModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Quality   string `json:"quality"`
	Installed bool   `json:"installed"`
}

// ListSpeechModels merges the runtime's installable model list with the
// espeak fallback, which needs no download.
func ListSpeechModels(ctx context.Context, channel ipc.Channel) ([]providers.ModelInfo, error) {
	raw, err := channel.Invoke(ctx, "tts.list_models", nil)
	if err != nil {
		return nil, fmt.Errorf("tts.list_models: %w", err)
	}
	var listed []runtimeModel
	if err := json.Unmarshal(raw, &listed); err != nil {
		return nil, fmt.Errorf("decoding tts.list_models result: %w", err)
	}

	installed, err := installedSpeechModels(ctx, channel)
	if err != nil {
		return nil, err
	}

	models := make([]providers.ModelInfo, 0, len(listed)+1)
	for _, m := range listed {
		models = append(models, providers.ModelInfo{
			ID:        m.ID,
			Name:      m.Name,
			Size:      m.Size,
			Quality:   m.Quality,
			Installed: m.Installed || installed[m.ID],
		})
	}
	models = append(models, providers.ModelInfo{
		ID:        EspeakModel,
		Name:      "eSpeak NG",
		Quality:   "low",
		Installed: true,
	})
	return models, nil
}

func installedSpeechModels(ctx context.Context, channel ipc.Channel) (map[string]bool, error) {
	raw, err := channel.Invoke(ctx, "tts.list_installed_models", nil)
	if err != nil {
		return nil, fmt.Errorf("tts.list_installed_models: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decoding tts.list_installed_models result: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// LoadSpeechModel blocks until the runtime has downloaded and loaded the
// model. Already-loaded models reload instead, which is cheap.
func LoadSpeechModel(ctx context.Context, channel ipc.Channel, modelID string) error {
	if modelID == EspeakModel {
		return nil
	}
	if _, err := channel.Invoke(ctx, "tts.load_model", map[string]any{"model": modelID}); err != nil {
		return fmt.Errorf("tts.load_model: %w", err)
	}
	return nil
}

// SubscribeSpeechProgress attaches a handler to the runtime's download
// progress event stream for synthesis models.
func SubscribeSpeechProgress(channel ipc.Channel, handler func(providers.ProgressEvent)) (func(), error) {
	return subscribeProgress(channel, "tts:load-model-progress", handler)
}

// Runtime progress events arrive as a positional tuple:
// [done, filename, progress(0..100), totalSize, currentSize].
func subscribeProgress(channel ipc.Channel, event string, handler func(providers.ProgressEvent)) (func(), error) {
	return channel.Listen(event, func(payload json.RawMessage) {
		var tuple []json.RawMessage
		if err := json.Unmarshal(payload, &tuple); err != nil || len(tuple) < 3 {
			logger.WarnCF("voice", "malformed progress event", map[string]any{
				"event":   event,
				"payload": string(payload),
			})
			return
		}
		var ev providers.ProgressEvent
		_ = json.Unmarshal(tuple[0], &ev.Done)
		_ = json.Unmarshal(tuple[1], &ev.Filename)
		_ = json.Unmarshal(tuple[2], &ev.Progress)
		if len(tuple) > 3 {
			_ = json.Unmarshal(tuple[3], &ev.TotalSize)
		}
		if len(tuple) > 4 {
			_ = json.Unmarshal(tuple[4], &ev.CurrentSize)
		}
		handler(ev)
	})
}
