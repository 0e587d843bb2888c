package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"transcriptor/internal/archive"
	"transcriptor/internal/config"
	"transcriptor/internal/handlers"
	"transcriptor/internal/jobs"
	"transcriptor/internal/lemonfox"
	"transcriptor/internal/logging"
	"transcriptor/internal/media"
	"transcriptor/internal/pipeline"
	"transcriptor/internal/transcript"
	"transcriptor/internal/version"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	var history *archive.Archive
	if cfg.ArchivePath != "" {
		history, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ArchivePath).Msg("failed to open job history")
		}
		defer history.Close()
	}

	store := jobs.NewStore()
	newRunner := func() (jobs.Runner, error) {
		apiKey, err := config.APIKey()
		if err != nil {
			return nil, err
		}
		client, err := lemonfox.NewClient(apiKey)
		if err != nil {
			return nil, err
		}
		fetcher := media.NewFetcher()
		return &pipeline.Executor{
			Fetcher:     fetcher,
			Transcriber: client,
			Resolver:    fetcher,
			Writers:     transcript.DefaultWriters(),
			Log:         log,
		}, nil
	}

	var archiver jobs.Archiver
	if history != nil {
		archiver = history
	}
	orch := jobs.NewOrchestrator(store, newRunner, cfg.OutputDir, archiver, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	api := e.Group("/api")
	var hist handlers.History
	if history != nil {
		hist = history
	}
	handlers.NewJobHandler(orch, store, hist).Register(api)

	log.Info().Str("version", version.Version).Int("port", cfg.Port).Msg("starting server")
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
