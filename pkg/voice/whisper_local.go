package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aibridge/aibridge/pkg/ipc"
	"github.com/aibridge/aibridge/pkg/logger"
	"github.com/aibridge/aibridge/pkg/providers"
)

// WhisperLocal transcribes audio through the local audio runtime over the
// ipc bridge. Audio is read from disk and shipped inline.
type WhisperLocal struct {
	channel ipc.Channel
	model   string
}

func NewWhisperLocal(channel ipc.Channel, model string) *WhisperLocal {
	if model == "" {
		model = "tiny.en"
	}
	return &WhisperLocal{channel: channel, model: model}
}

type whisperTranscribeResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (w *WhisperLocal) Transcribe(ctx context.Context, audioPath string) (*providers.Transcription, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}

	logger.DebugCF("voice", "transcribing via local runtime", map[string]any{
		"model":      w.model,
		"audio_file": filepath.Base(audioPath),
		"size_bytes": len(audio),
	})

	raw, err := w.channel.Invoke(ctx, "stt.transcribe", map[string]any{
		"model":    w.model,
		"filename": filepath.Base(audioPath),
		"audio":    base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		return nil, fmt.Errorf("stt.transcribe: %w", err)
	}

	var result whisperTranscribeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding stt.transcribe result: %w", err)
	}
	return &providers.Transcription{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
	}, nil
}

// ListTranscriptionModels returns the runtime's whisper model catalog.
func ListTranscriptionModels(ctx context.Context, channel ipc.Channel) ([]providers.ModelInfo, error) {
	raw, err := channel.Invoke(ctx, "stt.list_models", nil)
	if err != nil {
		return nil, fmt.Errorf("stt.list_models: %w", err)
	}
	var listed []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Size      int64  `json:"size"`
		Accuracy  string `json:"accuracy"`
		Speed     string `json:"speed"`
		Installed bool   `json:"installed"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		return nil, fmt.Errorf("decoding stt.list_models result: %w", err)
	}

	models := make([]providers.ModelInfo, 0, len(listed))
	for _, m := range listed {
		models = append(models, providers.ModelInfo{
			ID:        m.ID,
			Name:      m.Name,
			Size:      m.Size,
			Accuracy:  m.Accuracy,
			Speed:     m.Speed,
			Installed: m.Installed,
		})
	}
	return models, nil
}

// LoadTranscriptionModel blocks until the runtime has the model ready.
func LoadTranscriptionModel(ctx context.Context, channel ipc.Channel, modelID string) error {
	if _, err := channel.Invoke(ctx, "stt.load_model", map[string]any{"model": modelID}); err != nil {
		return fmt.Errorf("stt.load_model: %w", err)
	}
	return nil
}

// SubscribeTranscriptionProgress attaches a handler to the runtime's
// download progress stream for whisper models.
func SubscribeTranscriptionProgress(channel ipc.Channel, handler func(providers.ProgressEvent)) (func(), error) {
	return subscribeProgress(channel, "stt:load-model-progress", handler)
}
