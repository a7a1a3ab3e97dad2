package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/civic-flow/internal/civic"
	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/config"
	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/llm"
	"github.com/Veraticus/civic-flow/internal/notify"
	"github.com/Veraticus/civic-flow/internal/pipeline"
	"github.com/Veraticus/civic-flow/internal/storage"
	"github.com/mattn/go-isatty"
)

// initStorage opens the configured database and runs migrations.
func initStorage(ctx context.Context, s *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(s.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

type pipelineOptions struct {
	enrich   bool
	progress bool
}

// newPipeline wires a pipeline for store. The returned cleanup releases the
// enricher's background resources.
func newPipeline(s *config.Settings, store *storage.SQLiteStorage, opts pipelineOptions) (*pipeline.Pipeline, func(), error) {
	logger := slog.Default()
	cleanup := func() {}

	var dlOpts []download.Option
	if opts.progress {
		dlOpts = append(dlOpts, download.WithProgress(cli.DownloadProgress(os.Stderr)))
	}
	downloader, err := download.New(s.DownloaderConfig(), store, dlOpts...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create downloader: %w", err)
	}

	pOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithFetcher(downloader),
		pipeline.WithNotifier(notify.New(s.Notify.WebhookURL, s.Notify.Timeout, s.NotifyRetry())),
	}
	if opts.progress {
		pOpts = append(pOpts, pipeline.WithProgress(cli.PipelineProgress(os.Stderr)))
	}

	if opts.enrich && s.LLM.Enabled {
		enricher, err := newEnricher(s, logger)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = enricher.Close
		pOpts = append(pOpts, pipeline.WithEnricher(enricher))
	}

	p, err := pipeline.New(store, civic.NewDefaultEngine(logger), s.PipelineSettings(), pOpts...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return p, cleanup, nil
}

func newEnricher(s *config.Settings, logger *slog.Logger) (*llm.Enricher, error) {
	cfg := s.LLMConfig()
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	enricher, err := llm.NewEnricher(client, cfg, civic.DefaultCategories(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create enricher: %w", err)
	}
	return enricher, nil
}

// showProgress reports whether progress bars should be drawn on stderr.
func showProgress(disabled bool) bool {
	return !disabled && isatty.IsTerminal(os.Stderr.Fd())
}
