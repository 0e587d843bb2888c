package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"transcriptor/internal/config"
	"transcriptor/internal/jobs"
	"transcriptor/internal/lemonfox"
	"transcriptor/internal/logging"
	"transcriptor/internal/media"
	"transcriptor/internal/pipeline"
	"transcriptor/internal/transcript"
)

func main() {
	var (
		outputDir   = flag.String("output-dir", "transcripts", "Directory for transcript files")
		model       = flag.String("model", pipeline.DefaultModel, "Transcription model")
		formats     = flag.String("formats", strings.Join(pipeline.DefaultFormats(), ","), "Comma-separated output formats: txt, srt")
		audioFormat = flag.String("audio-format", pipeline.DefaultAudioCodec, "Intermediate audio codec: m4a, webm")
		template    = flag.String("filename-template", pipeline.DefaultFilenameTemplate, "Output filename template")
		language    = flag.String("language", "", "Audio language hint (ISO 639-1)")
		prompt      = flag.String("prompt", "", "Transcription prompt")
		temperature = flag.Float64("temperature", 0, "Sampling temperature")
		speakers    = flag.Bool("speaker-labels", false, "Request speaker labels")
		keepAudio   = flag.Bool("keep-audio", false, "Keep intermediate audio files")
		verbose     = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] URL [URL...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s https://www.youtube.com/watch?v=xxxx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -formats srt -language ja https://youtu.be/xxxx\n", os.Args[0])
	}

	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintf(os.Stderr, "Error: At least one URL is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	apiKey, err := config.APIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client, err := lemonfox.NewClient(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	writers := transcript.DefaultWriters()
	var requested []string
	for _, f := range strings.Split(*formats, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := writers[f]; !ok {
			fmt.Fprintf(os.Stderr, "Error: Unknown format '%s'. Must be: txt or srt\n", f)
			os.Exit(1)
		}
		requested = append(requested, f)
	}
	if len(requested) == 0 {
		fmt.Fprintf(os.Stderr, "Error: No output formats selected\n")
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logging.New(level, "console")

	audioDir, err := pipeline.SetupDirs(*outputDir, jobs.AudioSubdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fetcher := media.NewFetcher()
	runner := &pipeline.Executor{
		Fetcher:     fetcher,
		Transcriber: client,
		Resolver:    fetcher,
		Writers:     writers,
		Log:         log,
	}

	req := pipeline.Request{
		URLs: urls,
		Config: pipeline.Config{
			Model:            *model,
			Formats:          requested,
			AudioCodec:       *audioFormat,
			FilenameTemplate: *template,
			Language:         *language,
			Prompt:           *prompt,
			Temperature:      *temperature,
			SpeakerLabels:    *speakers,
			KeepAudio:        *keepAudio,
		},
	}

	result := runner.Run(context.Background(), req, audioDir, *outputDir, nil)

	fmt.Printf("Processed %d of %d URL(s); output in %s\n", result.Processed, len(urls), *outputDir)
	if len(result.FailedURLs) > 0 {
		failed := append([]string(nil), result.FailedURLs...)
		sort.Strings(failed)
		fmt.Fprintf(os.Stderr, "Failed URLs:\n")
		for _, u := range failed {
			fmt.Fprintf(os.Stderr, "  %s\n", u)
		}
		os.Exit(1)
	}
}
