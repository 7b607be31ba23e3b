package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aibridge/aibridge/pkg/providers"
)

// SpeechHTTP synthesizes through an OpenAI-compatible /audio/speech
// endpoint and returns the audio bytes.
type SpeechHTTP struct {
	apiBase    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewSpeechHTTP(apiBase, apiKey, model string, httpClient *http.Client) *SpeechHTTP {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultVoiceTimeout}
	}
	if model == "" {
		model = "tts-1"
	}
	return &SpeechHTTP{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type speechRequest struct {
	Model  string  `json:"model"`
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed,omitempty"`
	Format string  `json:"response_format,omitempty"`
}

func (s *SpeechHTTP) Synthesize(ctx context.Context, text, voice string, settings providers.VoiceSettings) ([]byte, error) {
	if voice == "" {
		voice = "alloy"
	}

	bodyBytes, err := json.Marshal(speechRequest{
		Model:  s.model,
		Input:  text,
		Voice:  voice,
		Speed:  settings.Speed,
		Format: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// OpenAISpeechVoices is the fixed voice set of the OpenAI speech API.
func OpenAISpeechVoices() []providers.VoiceInfo {
	names := []string{"alloy", "ash", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer"}
	voices := make([]providers.VoiceInfo, 0, len(names))
	for _, name := range names {
		voices = append(voices, providers.VoiceInfo{
			ID:       name,
			Name:     strings.ToUpper(name[:1]) + name[1:],
			Provider: "openai-speech",
		})
	}
	return voices
}
