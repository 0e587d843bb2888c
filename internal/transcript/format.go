package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteFunc writes a transcript to outputPath in one concrete format.
// Writers overwrite deterministically and create parent directories.
type WriteFunc func(t *Transcript, outputPath string) error

// DefaultWriters maps format names to their writers.
func DefaultWriters() map[string]WriteFunc {
	return map[string]WriteFunc{
		"txt": WriteTXT,
		"srt": WriteSRT,
	}
}

// WriteTXT writes the plain-text transcript. It prefers the full text and
// falls back to joining segment texts when only segments are present.
func WriteTXT(t *Transcript, outputPath string) error {
	text := t.Text
	if text == "" && len(t.Segments) > 0 {
		var lines []string
		for _, seg := range t.Segments {
			if s := strings.TrimSpace(seg.Text); s != "" {
				lines = append(lines, s)
			}
		}
		text = strings.Join(lines, "\n")
	}
	if text == "" {
		return fmt.Errorf("transcript has no text or segments")
	}
	return writeFile(outputPath, strings.TrimSpace(text)+"\n")
}

// WriteSRT writes a SubRip subtitle file from the timed segments. Segments
// with empty text or an end before their start are skipped. When no segments
// exist but the text already looks like SRT data, it is written as-is.
func WriteSRT(t *Transcript, outputPath string) error {
	if len(t.Segments) == 0 {
		if strings.Contains(t.Text, "-->") {
			return writeFile(outputPath, t.Text)
		}
		return fmt.Errorf("srt output requires timed segments")
	}

	var b strings.Builder
	cue := 0
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End < seg.Start {
			continue
		}
		cue++
		b.WriteString(fmt.Sprintf("%d\n", cue))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(seg.Start), formatSRTTime(seg.End)))
		if seg.Speaker != "" {
			b.WriteString(fmt.Sprintf("(%s) %s\n", seg.Speaker, text))
		} else {
			b.WriteString(text + "\n")
		}
		b.WriteString("\n")
	}
	if cue == 0 {
		return fmt.Errorf("no valid segments for srt output")
	}
	return writeFile(outputPath, b.String())
}

// formatSRTTime converts seconds to SRT time format (HH:MM:SS,mmm).
func formatSRTTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
