package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"transcriptor/internal/pipeline"
)

// AudioSubdir is the per-job subdirectory holding intermediate audio.
const AudioSubdir = "_audio"

// Runner executes a batch. *pipeline.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, audioDir, outputDir string, sink pipeline.PhaseSink) pipeline.Result
}

// RunnerFactory builds a Runner bound to resolved credentials. Credential
// resolution failures are configuration faults that fail the whole job.
type RunnerFactory func() (Runner, error)

// Archiver persists terminal job snapshots. Optional; implemented by the
// archive package.
type Archiver interface {
	Record(ctx context.Context, snap Snapshot) error
}

// Orchestrator creates job records and runs one worker goroutine per job.
type Orchestrator struct {
	store      *Store
	newRunner  RunnerFactory
	baseDir    string
	archive    Archiver
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator writing job output under baseDir.
// archive may be nil.
func NewOrchestrator(store *Store, newRunner RunnerFactory, baseDir string, archive Archiver, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		newRunner: newRunner,
		baseDir:   baseDir,
		archive:   archive,
		log:       log,
	}
}

// Submit registers the request and starts its worker, returning the job id
// immediately. This is the asynchronous boundary between callers and the
// pipeline.
func (o *Orchestrator) Submit(req pipeline.Request) (string, error) {
	if len(req.URLs) == 0 {
		return "", errors.New("no urls provided")
	}
	rec := o.store.Create(req)
	o.log.Info().Str("job_id", rec.ID()).Int("urls", len(req.URLs)).Msg("job submitted")

	o.wg.Add(1)
	go o.run(rec)
	return rec.ID(), nil
}

// Retry resubmits the verbatim original request of a failed job under a new
// id. The failed record is left untouched.
func (o *Orchestrator) Retry(id string) (string, error) {
	snap, err := o.store.Get(id)
	if err != nil {
		return "", err
	}
	if snap.Status != StatusFailed {
		return "", ErrNotRetryable
	}
	newID, err := o.Submit(snap.Request)
	if err != nil {
		return "", err
	}
	o.log.Info().Str("job_id", id).Str("retry_id", newID).Msg("failed job retried")
	return newID, nil
}

// Wait blocks until all workers have finished. Used for graceful shutdown
// and tests.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// run is the worker protocol: cancellation checkpoints before any work,
// before the pipeline, and after it; everything between is delegated to the
// pipeline executor.
func (o *Orchestrator) run(rec *Record) {
	defer o.wg.Done()
	log := o.log.With().Str("job_id", rec.ID()).Logger()

	// Checkpoint: cancelled before any work started.
	if rec.CancelRequested() {
		rec.FinishCancelled(nil)
		log.Info().Msg("job cancelled before start")
		o.archiveTerminal(rec)
		return
	}

	runner, err := o.newRunner()
	if err != nil {
		rec.Fail(fmt.Sprintf("transcription service not configured: %v", err))
		log.Error().Err(err).Msg("configuration fault")
		o.archiveTerminal(rec)
		return
	}

	outputDir := filepath.Join(o.baseDir, rec.ID())
	audioDir, err := pipeline.SetupDirs(outputDir, AudioSubdir)
	if err != nil {
		rec.Fail(err.Error())
		log.Error().Err(err).Msg("failed to create job directories")
		o.archiveTerminal(rec)
		return
	}
	rec.SetOutputDir(outputDir)

	// Checkpoint: cancelled after setup, before the pipeline.
	if rec.CancelRequested() {
		rec.FinishCancelled(listFiles(outputDir))
		log.Info().Msg("job cancelled before pipeline start")
		o.archiveTerminal(rec)
		return
	}

	result, panicMsg := o.safeRun(runner, rec, audioDir, outputDir)
	files := listFiles(outputDir)

	// Checkpoint: cancelled while the pipeline ran. The partial output is
	// recorded, the outcome is not.
	if rec.CancelRequested() {
		rec.FinishCancelled(files)
		log.Info().Msg("job cancelled")
		o.archiveTerminal(rec)
		return
	}

	switch {
	case panicMsg != "":
		rec.Fail(panicMsg)
		log.Error().Str("error", panicMsg).Msg("job failed unexpectedly")
	case len(result.FailedURLs) == 0:
		rec.Complete(result.Processed, files)
		log.Info().Int("processed", result.Processed).Msg("job completed")
	default:
		msg := fmt.Sprintf("processing failed for URLs: %s", strings.Join(result.FailedURLs, ", "))
		rec.FailWithResult(msg, result.Processed, result.FailedURLs, files)
		log.Warn().Strs("failed_urls", result.FailedURLs).Msg("job finished with failures")
	}
	o.archiveTerminal(rec)
}

// safeRun executes the pipeline, converting an executor-level panic into a
// failure message so the worker never crashes.
func (o *Orchestrator) safeRun(runner Runner, rec *Record, audioDir, outputDir string) (result pipeline.Result, panicMsg string) {
	defer func() {
		if r := recover(); r != nil {
			panicMsg = fmt.Sprintf("unexpected error: %v", r)
		}
	}()
	result = runner.Run(context.Background(), rec.Request(), audioDir, outputDir, rec.ObservePhase)
	return result, ""
}

func (o *Orchestrator) archiveTerminal(rec *Record) {
	if o.archive == nil {
		return
	}
	if err := o.archive.Record(context.Background(), rec.Snapshot()); err != nil {
		o.log.Warn().Err(err).Str("job_id", rec.ID()).Msg("failed to archive job")
	}
}

// listFiles returns the regular, non-hidden files in dir. Produced files are
// preserved in the record even when the job fails or is cancelled.
func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files
}
