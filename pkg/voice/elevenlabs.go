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

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabs synthesizes through the ElevenLabs REST API.
type ElevenLabs struct {
	apiBase    string
	apiKey     string
	modelID    string
	httpClient *http.Client
}

func NewElevenLabs(apiKey, modelID string, httpClient *http.Client) *ElevenLabs {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultVoiceTimeout}
	}
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabs{
		apiBase:    elevenLabsBaseURL,
		apiKey:     apiKey,
		modelID:    modelID,
		httpClient: httpClient,
	}
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice string, settings providers.VoiceSettings) ([]byte, error) {
	if voice == "" {
		return nil, fmt.Errorf("ElevenLabs requires a voice id")
	}

	bodyBytes, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: elevenLabsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           settings.Speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	url := e.apiBase + "/text-to-speech/" + voice
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// ListVoices queries the account's voice library.
func (e *ElevenLabs) ListVoices(ctx context.Context) ([]providers.VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", e.apiBase+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ElevenLabs error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var listing struct {
		Voices []struct {
			VoiceID    string `json:"voice_id"`
			Name       string `json:"name"`
			PreviewURL string `json:"preview_url"`
			Labels     struct {
				Gender string `json:"gender"`
			} `json:"labels"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	voices := make([]providers.VoiceInfo, 0, len(listing.Voices))
	for _, v := range listing.Voices {
		voices = append(voices, providers.VoiceInfo{
			ID:         v.VoiceID,
			Name:       v.Name,
			Provider:   "elevenlabs",
			Gender:     v.Labels.Gender,
			PreviewURL: v.PreviewURL,
		})
	}
	return voices, nil
}
