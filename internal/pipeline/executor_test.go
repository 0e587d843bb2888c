package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"transcriptor/internal/lemonfox"
	"transcriptor/internal/transcript"
)

type fakeFetcher struct {
	failFor map[string]bool
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destDir, codec, template string) (string, error) {
	f.fetched = append(f.fetched, url)
	if f.failFor[url] {
		return "", fmt.Errorf("fetch failed for %s", url)
	}
	path := filepath.Join(destDir, fmt.Sprintf("audio-%d.m4a", len(f.fetched)))
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeTranscriber struct {
	fail  bool
	calls int
	opts  []lemonfox.Options
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, model string, opts lemonfox.Options) (*transcript.Transcript, error) {
	f.calls++
	f.opts = append(f.opts, opts)
	if f.fail {
		return nil, fmt.Errorf("transcription failed")
	}
	return &transcript.Transcript{
		Text:     "hello",
		Segments: []transcript.Segment{{Start: 0, End: 1, Text: "hello"}},
	}, nil
}

type fakeResolver struct {
	err   error
	names map[string]string
}

func (f *fakeResolver) ResolveBasename(ctx context.Context, url, template string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if name, ok := f.names[url]; ok {
		return name, nil
	}
	return "video", nil
}

type env struct {
	exec      *Executor
	fetcher   *fakeFetcher
	trans     *fakeTranscriber
	resolver  *fakeResolver
	audioDir  string
	outputDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	outputDir := t.TempDir()
	audioDir, err := SetupDirs(outputDir, "_audio")
	if err != nil {
		t.Fatalf("SetupDirs failed: %v", err)
	}
	fetcher := &fakeFetcher{failFor: map[string]bool{}}
	trans := &fakeTranscriber{}
	resolver := &fakeResolver{names: map[string]string{}}
	return &env{
		exec: &Executor{
			Fetcher:     fetcher,
			Transcriber: trans,
			Resolver:    resolver,
			Log:         zerolog.Nop(),
		},
		fetcher:   fetcher,
		trans:     trans,
		resolver:  resolver,
		audioDir:  audioDir,
		outputDir: outputDir,
	}
}

func (e *env) run(t *testing.T, req Request, sink PhaseSink) Result {
	t.Helper()
	return e.exec.Run(context.Background(), req, e.audioDir, e.outputDir, sink)
}

func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s: %v", path, err)
	}
}

func requireNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file %s should not exist", path)
	}
}

func TestRun_AllSucceed(t *testing.T) {
	e := newEnv(t)
	e.resolver.names["url1"] = "first"
	e.resolver.names["url2"] = "second"

	res := e.run(t, Request{URLs: []string{"url1", "url2"}}, nil)

	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}
	if len(res.FailedURLs) != 0 {
		t.Errorf("failed urls = %v, want none", res.FailedURLs)
	}
	for _, name := range []string{"first.txt", "first.srt", "second.txt", "second.srt"} {
		requireFile(t, filepath.Join(e.outputDir, name))
	}
}

func TestRun_SecondURLFailsAtFetch(t *testing.T) {
	e := newEnv(t)
	e.fetcher.failFor["url2"] = true
	e.resolver.names["url1"] = "first"

	res := e.run(t, Request{URLs: []string{"url1", "url2"}}, nil)

	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1", res.Processed)
	}
	if !reflect.DeepEqual(res.FailedURLs, []string{"url2"}) {
		t.Errorf("failed urls = %v, want [url2]", res.FailedURLs)
	}
	requireFile(t, filepath.Join(e.outputDir, "first.txt"))
	// No transcription is attempted for the failed URL.
	if e.trans.calls != 1 {
		t.Errorf("transcriber called %d times, want 1", e.trans.calls)
	}
}

func TestRun_TranscriptionFails(t *testing.T) {
	e := newEnv(t)
	e.trans.fail = true

	res := e.run(t, Request{URLs: []string{"url1"}}, nil)

	if res.Processed != 0 {
		t.Errorf("processed = %d, want 0", res.Processed)
	}
	if !reflect.DeepEqual(res.FailedURLs, []string{"url1"}) {
		t.Errorf("failed urls = %v", res.FailedURLs)
	}
	entries, _ := os.ReadDir(e.outputDir)
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Errorf("no format files should exist, found %s", entry.Name())
		}
	}
	// Intermediate audio still cleaned up.
	requireNoFile(t, filepath.Join(e.audioDir, "audio-1.m4a"))
}

func TestRun_PartialFormatSuccessCountsProcessed(t *testing.T) {
	e := newEnv(t)
	e.exec.Writers = map[string]transcript.WriteFunc{
		"txt": transcript.WriteTXT,
		"srt": func(tr *transcript.Transcript, path string) error {
			return fmt.Errorf("srt writer broken")
		},
	}

	res := e.run(t, Request{URLs: []string{"url1"}}, nil)

	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1", res.Processed)
	}
	if len(res.FailedURLs) != 0 {
		t.Errorf("failed urls = %v, want none", res.FailedURLs)
	}
	requireFile(t, filepath.Join(e.outputDir, "video.txt"))
	requireNoFile(t, filepath.Join(e.outputDir, "video.srt"))
}

func TestRun_AllFormatsFail(t *testing.T) {
	e := newEnv(t)
	broken := func(tr *transcript.Transcript, path string) error {
		return fmt.Errorf("writer broken")
	}
	e.exec.Writers = map[string]transcript.WriteFunc{"txt": broken, "srt": broken}

	res := e.run(t, Request{URLs: []string{"url1"}}, nil)

	if res.Processed != 0 || !reflect.DeepEqual(res.FailedURLs, []string{"url1"}) {
		t.Errorf("got %+v, want url1 failed", res)
	}
}

func TestRun_DuplicateFailedURLListedOnce(t *testing.T) {
	e := newEnv(t)
	e.fetcher.failFor["bad"] = true

	res := e.run(t, Request{URLs: []string{"bad", "bad", "bad"}}, nil)

	if res.Processed != 0 {
		t.Errorf("processed = %d, want 0", res.Processed)
	}
	if !reflect.DeepEqual(res.FailedURLs, []string{"bad"}) {
		t.Errorf("failed urls = %v, want a single entry", res.FailedURLs)
	}
	// Each occurrence is still attempted independently.
	if len(e.fetcher.fetched) != 3 {
		t.Errorf("fetch attempts = %d, want 3", len(e.fetcher.fetched))
	}
}

func TestRun_CleanupRemovesAudio(t *testing.T) {
	e := newEnv(t)
	res := e.run(t, Request{URLs: []string{"url1"}}, nil)
	if res.Processed != 1 {
		t.Fatalf("processed = %d", res.Processed)
	}
	requireNoFile(t, filepath.Join(e.audioDir, "audio-1.m4a"))
}

func TestRun_KeepAudio(t *testing.T) {
	e := newEnv(t)
	res := e.run(t, Request{
		URLs:   []string{"url1"},
		Config: Config{KeepAudio: true},
	}, nil)
	if res.Processed != 1 {
		t.Fatalf("processed = %d", res.Processed)
	}
	requireFile(t, filepath.Join(e.audioDir, "audio-1.m4a"))
}

func TestRun_BasenameFallback(t *testing.T) {
	e := newEnv(t)
	e.resolver.err = fmt.Errorf("metadata unavailable")

	res := e.run(t, Request{URLs: []string{"url1"}}, nil)

	if res.Processed != 1 {
		t.Fatalf("resolution failure must not abort the url, got %+v", res)
	}
	requireFile(t, filepath.Join(e.outputDir, "transcript.txt"))
	requireFile(t, filepath.Join(e.outputDir, "transcript.srt"))
}

func TestRun_PanicIsolatedToURL(t *testing.T) {
	e := newEnv(t)
	e.exec.Writers = map[string]transcript.WriteFunc{
		"txt": func(tr *transcript.Transcript, path string) error {
			if filepath.Base(path) == "boom.txt" {
				panic("writer exploded")
			}
			return transcript.WriteTXT(tr, path)
		},
	}
	e.resolver.names["url1"] = "boom"
	e.resolver.names["url2"] = "fine"

	res := e.run(t, Request{
		URLs:   []string{"url1", "url2"},
		Config: Config{Formats: []string{"txt"}},
	}, nil)

	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1", res.Processed)
	}
	if !reflect.DeepEqual(res.FailedURLs, []string{"url1"}) {
		t.Errorf("failed urls = %v, want [url1]", res.FailedURLs)
	}
	requireFile(t, filepath.Join(e.outputDir, "fine.txt"))
	// Cleanup still ran for the panicked URL.
	requireNoFile(t, filepath.Join(e.audioDir, "audio-1.m4a"))
}

func TestRun_PhaseOrder(t *testing.T) {
	e := newEnv(t)
	var phases []string
	e.run(t, Request{URLs: []string{"url1"}}, func(phase string) {
		phases = append(phases, phase)
	})

	want := []string{PhaseDownloading, PhaseTranscribing, PhaseFormatting}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestRun_PhasesStopAfterFetchFailure(t *testing.T) {
	e := newEnv(t)
	e.fetcher.failFor["url1"] = true
	var phases []string
	e.run(t, Request{URLs: []string{"url1"}}, func(phase string) {
		phases = append(phases, phase)
	})
	if !reflect.DeepEqual(phases, []string{PhaseDownloading}) {
		t.Errorf("phases = %v, want only downloading", phases)
	}
}

func TestRun_PanickingSinkIsTolerated(t *testing.T) {
	e := newEnv(t)
	res := e.run(t, Request{URLs: []string{"url1"}}, func(phase string) {
		panic("sink misbehaved")
	})
	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1 despite sink panics", res.Processed)
	}
}

func TestRun_OptionalParamsForwarded(t *testing.T) {
	e := newEnv(t)
	e.run(t, Request{
		URLs: []string{"url1"},
		Config: Config{
			Language:      "en",
			Prompt:        "names: Alice, Bob",
			Temperature:   0.3,
			SpeakerLabels: true,
		},
	}, nil)

	if len(e.trans.opts) != 1 {
		t.Fatalf("transcriber calls = %d", len(e.trans.opts))
	}
	got := e.trans.opts[0]
	if got.Language != "en" || got.Prompt != "names: Alice, Bob" ||
		got.Temperature != 0.3 || !got.SpeakerLabels {
		t.Errorf("options not forwarded: %+v", got)
	}
}

func TestRun_RerunSameClassification(t *testing.T) {
	e := newEnv(t)
	e.fetcher.failFor["bad"] = true
	req := Request{URLs: []string{"good", "bad"}}

	first := e.run(t, req, nil)
	second := e.run(t, req, nil)

	if first.Processed != second.Processed ||
		!reflect.DeepEqual(first.FailedURLs, second.FailedURLs) {
		t.Errorf("classification changed across reruns: %+v vs %+v", first, second)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{}.Normalize()
	if cfg.Model != DefaultModel {
		t.Errorf("model = %q", cfg.Model)
	}
	if !reflect.DeepEqual(cfg.Formats, DefaultFormats()) {
		t.Errorf("formats = %v", cfg.Formats)
	}
	if cfg.AudioCodec != DefaultAudioCodec {
		t.Errorf("codec = %q", cfg.AudioCodec)
	}
	if cfg.FilenameTemplate != DefaultFilenameTemplate {
		t.Errorf("template = %q", cfg.FilenameTemplate)
	}

	set := Config{Model: "whisper-large-v3", Formats: []string{"txt"}}.Normalize()
	if set.Model != "whisper-large-v3" || len(set.Formats) != 1 {
		t.Errorf("normalize overwrote explicit values: %+v", set)
	}
}
