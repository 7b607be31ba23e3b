package chat

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

// CompatProvider speaks the OpenAI chat-completions wire protocol over plain
// HTTP. It covers endpoints the SDK cannot reach cleanly: OpenRouter, Groq
// and local Ollama daemons, which each accept the protocol but diverge in
// auth and error shapes.
type CompatProvider struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

func NewCompatProvider(apiKey, apiBase string, httpClient *http.Client) *CompatProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}
	return &CompatProvider{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: httpClient,
	}
}

func (p *CompatProvider) Chat(
	ctx context.Context,
	messages []providers.ChatMessage,
	model string,
	options map[string]any,
) (*providers.ChatResponse, error) {
	if p.apiBase == "" {
		return nil, fmt.Errorf("API base not configured")
	}

	requestBody := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if maxTokens, ok := asInt(options["max_tokens"]); ok {
		requestBody["max_tokens"] = maxTokens
	}
	if temperature, ok := asFloat(options["temperature"]); ok {
		requestBody["temperature"] = temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed (status=%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseCompatResponse(body)
}

func parseCompatResponse(body []byte) (*providers.ChatResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, fmt.Errorf("API returned no choices")
	}

	choice := apiResponse.Choices[0]
	out := &providers.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	if apiResponse.Usage != nil {
		out.Usage = &providers.ChatUsage{
			PromptTokens:     apiResponse.Usage.PromptTokens,
			CompletionTokens: apiResponse.Usage.CompletionTokens,
			TotalTokens:      apiResponse.Usage.TotalTokens,
		}
	}
	return out, nil
}

// ListCompatModels queries the endpoint's /models listing. Ollama and
// OpenRouter both serve it; entries carry only ids.
func ListCompatModels(ctx context.Context, apiKey, apiBase string, httpClient *http.Client) ([]providers.ModelInfo, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, "GET", strings.TrimRight(apiBase, "/")+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed (status=%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	models := make([]providers.ModelInfo, 0, len(listing.Data))
	for _, m := range listing.Data {
		models = append(models, providers.ModelInfo{ID: m.ID, Name: m.ID, Installed: true})
	}
	return models, nil
}
