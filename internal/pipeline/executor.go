// Package pipeline drives the three-stage URL-to-transcript conversion:
// fetch audio, transcribe it, write the requested output formats. A fault in
// one URL never aborts the rest of the batch.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"transcriptor/internal/lemonfox"
	"transcriptor/internal/transcript"
)

// Coarse progress phases reported through the PhaseSink.
const (
	PhaseDownloading  = "downloading"
	PhaseTranscribing = "transcribing"
	PhaseFormatting   = "formatting"
)

// PhaseSink receives coarse progress labels while a batch runs. It must not
// block; a nil sink is treated as a no-op.
type PhaseSink func(phase string)

// AudioFetcher produces a local audio asset for a media URL.
type AudioFetcher interface {
	Fetch(ctx context.Context, url, destDir, codec, template string) (string, error)
}

// Transcriber converts a local audio asset into a structured transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model string, opts lemonfox.Options) (*transcript.Transcript, error)
}

// BasenameResolver derives a human-meaningful file stem for a URL.
type BasenameResolver interface {
	ResolveBasename(ctx context.Context, url, template string) (string, error)
}

// fallbackBasename is used when metadata-based resolution fails; resolution
// errors never abort a URL.
const fallbackBasename = "transcript"

// intermediateTemplate names intermediate audio files by source id.
const intermediateTemplate = "%(id)s"

// Executor runs batches. All collaborator fields must be set; Writers
// defaults to transcript.DefaultWriters when nil.
type Executor struct {
	Fetcher     AudioFetcher
	Transcriber Transcriber
	Resolver    BasenameResolver
	Writers     map[string]transcript.WriteFunc
	Log         zerolog.Logger
}

// Run processes the batch URLs strictly in order. audioDir holds
// intermediate audio assets and outputDir the final transcript files. Every
// URL ends up either counted in Processed or listed once in FailedURLs.
func (e *Executor) Run(ctx context.Context, req Request, audioDir, outputDir string, sink PhaseSink) Result {
	cfg := req.Config.Normalize()
	total := len(req.URLs)
	e.Log.Info().Int("urls", total).Msg("pipeline started")

	var result Result
	failed := make(map[string]bool)
	for i, url := range req.URLs {
		e.Log.Info().Str("url", url).Msgf("processing url %d/%d", i+1, total)
		if e.processURL(ctx, url, cfg, audioDir, outputDir, sink) {
			result.Processed++
		} else if !failed[url] {
			failed[url] = true
			result.FailedURLs = append(result.FailedURLs, url)
		}
	}

	e.Log.Info().
		Int("processed", result.Processed).
		Int("failed", len(result.FailedURLs)).
		Msg("pipeline finished")
	return result
}

// processURL runs the three stages for one URL. The cleanup of intermediate
// audio always runs, and a panic anywhere inside is absorbed as a failure of
// this URL only.
func (e *Executor) processURL(ctx context.Context, url string, cfg Config, audioDir, outputDir string, sink PhaseSink) (ok bool) {
	var audioPath string
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error().Str("url", url).Interface("panic", r).Msg("unexpected fault while processing url")
			ok = false
		}
		e.cleanup(audioPath, audioDir, cfg.KeepAudio)
	}()

	// Stage 1: fetch audio.
	e.notify(sink, PhaseDownloading)
	audioPath, err := e.Fetcher.Fetch(ctx, url, audioDir, cfg.AudioCodec, intermediateTemplate)
	if err != nil {
		e.Log.Error().Err(err).Str("url", url).Msg("audio fetch failed")
		return false
	}
	e.Log.Info().Str("audio", audioPath).Msg("audio saved")

	// Stage 2: transcribe.
	e.notify(sink, PhaseTranscribing)
	tr, err := e.Transcriber.Transcribe(ctx, audioPath, cfg.Model, lemonfox.Options{
		Language:      cfg.Language,
		Prompt:        cfg.Prompt,
		Temperature:   cfg.Temperature,
		SpeakerLabels: cfg.SpeakerLabels,
	})
	if err != nil {
		e.Log.Error().Err(err).Str("url", url).Msg("transcription failed")
		return false
	}

	// Stage 3: resolve the output stem and write the requested formats.
	e.notify(sink, PhaseFormatting)
	base, err := e.Resolver.ResolveBasename(ctx, url, cfg.FilenameTemplate)
	if err != nil {
		e.Log.Warn().Err(err).Str("url", url).Msgf("basename resolution failed, using %q", fallbackBasename)
		base = fallbackBasename
	}

	writers := e.Writers
	if writers == nil {
		writers = transcript.DefaultWriters()
	}
	written := 0
	for _, format := range cfg.Formats {
		outputPath := filepath.Join(outputDir, base+"."+format)
		write, known := writers[format]
		if !known {
			e.Log.Error().Str("url", url).Str("format", format).Msg("unknown output format")
			continue
		}
		if err := write(tr, outputPath); err != nil {
			e.Log.Error().Err(err).Str("url", url).Str("format", format).Msg("format generation failed")
			continue
		}
		e.Log.Info().Str("file", outputPath).Msg("transcript written")
		written++
	}

	switch {
	case written == len(cfg.Formats):
		return true
	case written > 0:
		// Partial format success still counts the URL as processed.
		e.Log.Warn().Str("url", url).Msgf("generated %d/%d requested formats", written, len(cfg.Formats))
		return true
	default:
		e.Log.Error().Str("url", url).Msg("no output format could be generated")
		return false
	}
}

// notify forwards a phase label to the sink, tolerating a nil or panicking
// sink.
func (e *Executor) notify(sink PhaseSink, phase string) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.Log.Warn().Interface("panic", r).Str("phase", phase).Msg("phase sink panicked")
		}
	}()
	sink(phase)
}

// cleanup removes the intermediate audio asset unless the caller asked to
// keep it, then tries to remove the audio directory, ignoring the error when
// other URLs' assets still occupy it.
func (e *Executor) cleanup(audioPath, audioDir string, keep bool) {
	if audioPath == "" {
		return
	}
	if keep {
		e.Log.Info().Str("audio", audioPath).Msg("intermediate audio kept")
		return
	}
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		e.Log.Warn().Err(err).Str("audio", audioPath).Msg("could not remove intermediate audio")
		return
	}
	// Best effort: the directory may legitimately be non-empty.
	_ = os.Remove(audioDir)
}

// SetupDirs creates the output directory and its intermediate-audio
// subdirectory, returning the audio dir path.
func SetupDirs(outputDir, audioSubdir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	audioDir := filepath.Join(outputDir, audioSubdir)
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	return audioDir, nil
}
