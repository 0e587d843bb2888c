package media

import (
	"testing"

	ytdl "github.com/kkdai/youtube/v2"
)

func TestExpandTemplate(t *testing.T) {
	video := &ytdl.Video{ID: "dQw4w9WgXcQ", Title: "Some Video", Author: "Some Channel"}

	cases := []struct {
		template string
		want     string
	}{
		{"%(id)s", "dQw4w9WgXcQ"},
		{"%(title)s [%(id)s]", "Some Video [dQw4w9WgXcQ]"},
		{"%(author)s - %(title)s", "Some Channel - Some Video"},
		{"plain", "plain"},
		{"%(unknown)s", "%(unknown)s"},
	}
	for _, c := range cases {
		if got := ExpandTemplate(c.template, video); got != c.want {
			t.Errorf("ExpandTemplate(%q) = %q, want %q", c.template, got, c.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a/b\\c:d", "a_b_c_d"},
		{"what? <title> | \"quoted\"", "what_ _title_ _ _quoted_"},
		{"  padded  ", "padded"},
		{"clean name", "clean name"},
	}
	for _, c := range cases {
		if got := sanitizeFilename(c.in); got != c.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCodecFamily(t *testing.T) {
	cases := []struct {
		codec string
		want  string
	}{
		{"m4a", "mp4"},
		{"MP4", "mp4"},
		{"aac", "mp4"},
		{"webm", "webm"},
		{"opus", "webm"},
		{"best", ""},
		{"flac", ""},
	}
	for _, c := range cases {
		if got := codecFamily(c.codec); got != c.want {
			t.Errorf("codecFamily(%q) = %q, want %q", c.codec, got, c.want)
		}
	}
}

func TestSelectAudioFormat(t *testing.T) {
	video := &ytdl.Video{
		Formats: ytdl.FormatList{
			{ItagNo: 1, MimeType: "video/mp4", Bitrate: 999999},
			{ItagNo: 140, MimeType: "audio/mp4; codecs=\"mp4a.40.2\"", Bitrate: 130000},
			{ItagNo: 251, MimeType: "audio/webm; codecs=\"opus\"", Bitrate: 160000},
		},
	}

	f, err := selectAudioFormat(video, "m4a")
	if err != nil {
		t.Fatalf("selectAudioFormat failed: %v", err)
	}
	if f.ItagNo != 140 {
		t.Errorf("want itag 140 for m4a, got %d", f.ItagNo)
	}

	f, err = selectAudioFormat(video, "best")
	if err != nil {
		t.Fatalf("selectAudioFormat failed: %v", err)
	}
	if f.ItagNo != 251 {
		t.Errorf("want highest-bitrate itag 251 for best, got %d", f.ItagNo)
	}

	// Requested family missing: fall back to best audio stream.
	f, err = selectAudioFormat(&ytdl.Video{
		Formats: ytdl.FormatList{
			{ItagNo: 140, MimeType: "audio/mp4", Bitrate: 130000},
		},
	}, "webm")
	if err != nil {
		t.Fatalf("selectAudioFormat failed: %v", err)
	}
	if f.ItagNo != 140 {
		t.Errorf("want fallback itag 140, got %d", f.ItagNo)
	}

	if _, err := selectAudioFormat(&ytdl.Video{}, "best"); err == nil {
		t.Error("expected error when no audio formats exist")
	}
}

func TestExtensionFor(t *testing.T) {
	if got := extensionFor("audio/mp4; codecs=\"mp4a.40.2\""); got != ".m4a" {
		t.Errorf("got %q", got)
	}
	if got := extensionFor("audio/webm; codecs=\"opus\""); got != ".webm" {
		t.Errorf("got %q", got)
	}
	if got := extensionFor("audio/flac"); got != ".audio" {
		t.Errorf("got %q", got)
	}
}
