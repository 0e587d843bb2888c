package transcript

// Segment is one timed utterance of a transcript.
type Segment struct {
	Start   float64 `json:"start"` // seconds
	End     float64 `json:"end"`   // seconds
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Transcript is the structured result of transcribing one audio asset.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"` // audio length in seconds
}
