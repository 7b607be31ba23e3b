package providers

// Category classifies what a provider backend produces.
type Category string

const (
	CategoryChat          Category = "chat"
	CategoryEmbed         Category = "embed"
	CategorySpeech        Category = "speech"
	CategoryTranscription Category = "transcription"
)

// ModelInfo describes one model a provider can serve. Installed is the only
// mutable field; it flips false to true after a successful load and never
// reverts on its own.
type ModelInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Size      int64    `json:"size"`
	Quality   string   `json:"quality,omitempty"`
	Accuracy  string   `json:"accuracy,omitempty"`
	Speed     string   `json:"speed,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Installed bool     `json:"installed"`
}

// Language pairs a language code with a display title.
type Language struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// VoiceInfo describes one synthesis voice. Immutable once returned.
type VoiceInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Provider   string     `json:"provider"`
	Gender     string     `json:"gender,omitempty"`
	Languages  []Language `json:"languages,omitempty"`
	PreviewURL string     `json:"previewUrl,omitempty"`
	ModelID    string     `json:"modelId,omitempty"`
}

// VoiceSettings are the one-level-deep tuning options merged by the facade.
type VoiceSettings struct {
	Pitch  float64 `json:"pitch"`
	Speed  float64 `json:"speed"`
	Volume float64 `json:"volume"`
}

// DefaultVoiceSettings returns the documented defaults for voice tuning.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Pitch: 0, Speed: 1.0, Volume: 0}
}

// ProgressInfo is the ephemeral per-model install progress entry. Progress is
// in the 0..1 range.
type ProgressInfo struct {
	Loaded   int64   `json:"loaded"`
	Total    int64   `json:"total"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

// ProgressEvent is one authoritative update from a local runtime's download
// stream. Progress is in the 0..100 range, matching the wire tuple.
type ProgressEvent struct {
	Done        bool
	Filename    string
	Progress    float64
	TotalSize   int64
	CurrentSize int64
}

// ValidationResult is produced fresh on every validation call.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Reason string   `json:"reason,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// Capabilities is the explicit capability set carried alongside a descriptor.
// Callers branch on these flags instead of probing for functions at call time.
type Capabilities struct {
	CanListModels bool `json:"canListModels"`
	CanListVoices bool `json:"canListVoices"`
	CanLoadModel  bool `json:"canLoadModel"`
}
