package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aibridge/aibridge/pkg/logger"
	"github.com/aibridge/aibridge/pkg/providers"
)

const defaultVoiceTimeout = 60 * time.Second

// TranscriberHTTP uploads audio to an OpenAI-compatible
// /audio/transcriptions endpoint. Both OpenAI and Groq serve this shape;
// only base URL, key and model differ.
type TranscriberHTTP struct {
	apiBase    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewTranscriberHTTP(apiBase, apiKey, model string, httpClient *http.Client) *TranscriberHTTP {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultVoiceTimeout}
	}
	return &TranscriberHTTP{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

func (t *TranscriberHTTP) Transcribe(ctx context.Context, audioPath string) (*providers.Transcription, error) {
	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer audioFile.Close()

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("failed to write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := t.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	logger.DebugCF("voice", "sending transcription request", map[string]any{
		"url":        url,
		"model":      t.model,
		"audio_file": filepath.Base(audioPath),
	})

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.InfoCF("voice", "transcription completed", map[string]any{
		"text_length":      len(result.Text),
		"language":         result.Language,
		"duration_seconds": result.Duration,
	})

	return &providers.Transcription{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
	}, nil
}
