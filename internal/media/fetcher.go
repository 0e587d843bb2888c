package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// Fetcher downloads the audio track of a remote media URL to a local file.
type Fetcher struct {
	client ytdl.Client
}

// NewFetcher creates a Fetcher backed by the YouTube client.
func NewFetcher() *Fetcher {
	return &Fetcher{client: ytdl.Client{}}
}

// Fetch downloads the best audio-only stream for url into destDir. The codec
// selects a stream family ("m4a"/"mp4", "webm"/"opus", or "best") and the
// template names the file (see ExpandTemplate). On success the returned path
// exists and is readable; on failure no partial file is left behind.
func (f *Fetcher) Fetch(ctx context.Context, url, destDir, codec, template string) (string, error) {
	video, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to get video: %w", err)
	}

	format, err := selectAudioFormat(video, codec)
	if err != nil {
		return "", err
	}

	base := sanitizeFilename(ExpandTemplate(template, video))
	if base == "" {
		base = video.ID
	}
	outputPath := filepath.Join(destDir, base+extensionFor(format.MimeType))

	stream, _, err := f.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to download: %w", err)
	}

	return outputPath, nil
}

// ResolveBasename expands the caller's filename template with the video's
// metadata and sanitizes it for use as a file stem.
func (f *Fetcher) ResolveBasename(ctx context.Context, url, template string) (string, error) {
	video, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to get video info: %w", err)
	}
	base := sanitizeFilename(ExpandTemplate(template, video))
	if base == "" {
		return "", fmt.Errorf("template %q expanded to an empty name", template)
	}
	return base, nil
}

// selectAudioFormat picks the highest-bitrate audio-only format matching the
// requested codec family, preferring the default audio track.
func selectAudioFormat(video *ytdl.Video, codec string) (*ytdl.Format, error) {
	var candidates []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if f.AudioTrack != nil && !f.AudioTrack.AudioIsDefault {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no audio formats available")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Bitrate > candidates[j].Bitrate
	})

	family := codecFamily(codec)
	if family != "" {
		for _, f := range candidates {
			if strings.Contains(f.MimeType, family) {
				return f, nil
			}
		}
	}
	// Fall back to the best available stream if the requested family is
	// not offered for this video.
	return candidates[0], nil
}

// codecFamily maps a requested audio codec to a container family.
func codecFamily(codec string) string {
	switch strings.ToLower(codec) {
	case "m4a", "mp4", "aac":
		return "mp4"
	case "webm", "opus", "vorbis":
		return "webm"
	default: // "best" or unknown
		return ""
	}
}

// extensionFor returns the file extension for a stream MIME type.
func extensionFor(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(mimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return strings.TrimSpace(replacer.Replace(name))
}
