package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 60 * time.Second
)

// OpenAIEmbedder produces embedding vectors through the OpenAI SDK.
type OpenAIEmbedder struct {
	client *openai.Client
}

func NewOpenAIEmbedder(apiKey, baseURL string, httpClient *http.Client) *OpenAIEmbedder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	reqOpts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAIEmbedder{client: &client}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, input []string, model string) ([][]float64, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("no input to embed")
	}
	if model == "" {
		model = defaultModel
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf(
				"embedding request failed (status=%d): %s",
				apiErr.StatusCode,
				strings.TrimSpace(apiErr.Message),
			)
		}
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(input))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		if idx := int(item.Index); idx < len(vectors) {
			vectors[idx] = item.Embedding
		}
	}
	return vectors, nil
}
