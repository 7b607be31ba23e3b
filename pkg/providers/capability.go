package providers

import "context"

// The interfaces below are the shapes a Descriptor.Create result may take.
// The facade asserts the one matching the descriptor's category; implementing
// packages (chat, voice, embed) satisfy them without importing this package's
// consumers.

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatUsage reports token accounting for one chat call.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the completed result of one chat call.
type ChatResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *ChatUsage `json:"usage,omitempty"`
}

// Chatter is the capability-bound instance for chat-category descriptors.
type Chatter interface {
	Chat(ctx context.Context, messages []ChatMessage, model string, options map[string]any) (*ChatResponse, error)
}

// Synthesizer is the capability-bound instance for speech-category
// descriptors. It returns encoded audio bytes (WAV or MP3 depending on the
// backend).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, settings VoiceSettings) ([]byte, error)
}

// Transcription is the result of one speech-recognition call.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcriber is the capability-bound instance for transcription-category
// descriptors. Input is a path to an audio file on disk.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcription, error)
}

// Embedder is the capability-bound instance for embed-category descriptors.
type Embedder interface {
	Embed(ctx context.Context, input []string, model string) ([][]float64, error)
}
