package config

import (
	"github.com/caarlos0/env/v11"

	"github.com/aibridge/aibridge/pkg/logger"
)

// envOverrides are credentials supplied through the environment. They win
// over stored values at Get time but are never written back to the store, so
// removing the variable restores the persisted config.
type envOverrides struct {
	OpenAIAPIKey     string `env:"AIBRIDGE_OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"AIBRIDGE_OPENAI_BASE_URL"`
	AnthropicAPIKey  string `env:"AIBRIDGE_ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"AIBRIDGE_ANTHROPIC_BASE_URL"`
	OpenRouterAPIKey string `env:"AIBRIDGE_OPENROUTER_API_KEY"`
	GroqAPIKey       string `env:"AIBRIDGE_GROQ_API_KEY"`
	ElevenLabsAPIKey string `env:"AIBRIDGE_ELEVENLABS_API_KEY"`
	OllamaBaseURL    string `env:"AIBRIDGE_OLLAMA_BASE_URL"`
}

func applyEnvOverrides(providerID string, cfg map[string]any) {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		logger.WarnCF("config", "failed to parse env overrides", map[string]any{"error": err.Error()})
		return
	}

	setIf := func(key, value string) {
		if value != "" {
			cfg[key] = value
		}
	}

	switch providerID {
	case "openai", "openai-embeddings", "openai-speech", "openai-whisper":
		setIf("apiKey", overrides.OpenAIAPIKey)
		setIf("baseUrl", overrides.OpenAIBaseURL)
	case "anthropic":
		setIf("apiKey", overrides.AnthropicAPIKey)
		setIf("baseUrl", overrides.AnthropicBaseURL)
	case "openrouter":
		setIf("apiKey", overrides.OpenRouterAPIKey)
	case "groq", "groq-whisper":
		setIf("apiKey", overrides.GroqAPIKey)
	case "elevenlabs":
		setIf("apiKey", overrides.ElevenLabsAPIKey)
	case "ollama":
		setIf("baseUrl", overrides.OllamaBaseURL)
	}
}
