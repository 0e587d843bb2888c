package pipeline

// Defaults for batch configuration.
const (
	DefaultModel            = "whisper-1"
	DefaultAudioCodec       = "m4a"
	DefaultFilenameTemplate = "%(title)s [%(id)s]"
)

// DefaultFormats are the output formats produced when none are requested.
func DefaultFormats() []string { return []string{"txt", "srt"} }

// Config is the per-batch configuration value object. It is immutable once
// submitted; retries read it back verbatim.
type Config struct {
	Model            string   `json:"model"`
	Formats          []string `json:"formats"`
	AudioCodec       string   `json:"audio_format"`
	FilenameTemplate string   `json:"filename_template"`
	Language         string   `json:"language,omitempty"`
	Prompt           string   `json:"prompt,omitempty"`
	Temperature      float64  `json:"temperature"`
	SpeakerLabels    bool     `json:"speaker_labels"`
	KeepAudio        bool     `json:"keep_audio"`
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if len(c.Formats) == 0 {
		c.Formats = DefaultFormats()
	}
	if c.AudioCodec == "" {
		c.AudioCodec = DefaultAudioCodec
	}
	if c.FilenameTemplate == "" {
		c.FilenameTemplate = DefaultFilenameTemplate
	}
	return c
}

// Request is one submitted batch: an ordered URL list (duplicates allowed,
// each processed independently) under a single configuration.
type Request struct {
	URLs   []string `json:"urls"`
	Config Config   `json:"config"`
}

// Result aggregates a batch run: how many URLs produced at least one output
// artifact, and the de-duplicated list of URLs that produced none, in first-
// failure order.
type Result struct {
	Processed  int
	FailedURLs []string
}
