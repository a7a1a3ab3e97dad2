// Package pipeline orchestrates ingestion, rule classification and optional
// LLM enrichment of Chamber of Deputies open data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/civic-flow/internal/civic"
	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/llm"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/notify"
	"github.com/Veraticus/civic-flow/internal/service"
	"github.com/google/uuid"
)

// Fetcher downloads a URL into the local data directory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*download.Result, error)
}

// Enricher suggests categories for propositions the rules left unlinked.
type Enricher interface {
	ClassifyBatch(ctx context.Context, props []model.Proposition, workers int) ([]llm.Suggestion, error)
}

// Progress tracks a long-running step.
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory starts a Progress for total units of work.
type ProgressFactory func(total int, description string) Progress

// Settings configures pipeline behavior.
type Settings struct {
	Catalog        download.Catalog
	SnapshotDir    string   // Directory for pre-classification snapshots; empty disables them
	Latin1Datasets []string // Datasets published in ISO-8859-1 instead of UTF-8
	SnapshotKeep   int      // Number of snapshots retained per tag
	Workers        int      // Classification workers
	EnrichWorkers  int      // Concurrent LLM requests
	EnrichLimit    int      // Maximum propositions sent to the LLM per run; 0 means no limit
}

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Workers:       4,
		EnrichWorkers: 4,
		EnrichLimit:   200,
		SnapshotKeep:  5,
	}
}

// RunOptions selects the stages of a Run.
type RunOptions struct {
	Years      []int
	SkipIngest bool // Skip fetch and load, classify what is already stored
	SkipEnrich bool
}

// Pipeline wires storage, download, classification and notification.
type Pipeline struct {
	store    service.Storage
	fetcher  Fetcher
	engine   *civic.Engine
	enricher Enricher
	notifier notify.Notifier
	progress ProgressFactory
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
	settings Settings
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher sets the downloader used by Fetch.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithEnricher enables the LLM enrichment stage.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithNotifier sets the run notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithProgress reports classification progress.
func WithProgress(f ProgressFactory) Option {
	return func(p *Pipeline) { p.progress = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline around store and engine.
func New(store service.Storage, engine *civic.Engine, settings Settings, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if engine == nil {
		return nil, errors.New("classification engine is required")
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	if settings.EnrichWorkers <= 0 {
		settings.EnrichWorkers = 1
	}

	p := &Pipeline{
		store:    store,
		engine:   engine,
		settings: settings,
		notifier: notify.Noop{},
		progress: func(int, string) Progress { return noopProgress{} },
		logger:   slog.Default(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the configured stages and records the run. Fetch and load
// failures abort the run. Classification and enrichment failures are kept
// as warnings and mark the run degraded.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        p.newID(),
		StartedAt: p.now().UTC(),
		Status:    model.RunRunning,
	}
	if err := p.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	logger := p.logger.With("run_id", run.ID)
	logger.Info("pipeline run started", "years", opts.Years, "skip_ingest", opts.SkipIngest)

	runErr := p.runStages(ctx, run, opts, logger)

	finished := p.now().UTC()
	run.FinishedAt = &finished
	switch {
	case runErr != nil:
		run.Status = model.RunFailed
		run.Error = runErr.Error()
	case len(run.Warnings) > 0:
		run.Status = model.RunDegraded
	default:
		run.Status = model.RunSucceeded
	}

	// The run must be recorded even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.store.FinishRun(finishCtx, run); err != nil {
		logger.Error("failed to record run result", "error", err)
	}
	if err := p.notifier.Notify(finishCtx, notify.EventFromRun(run)); err != nil {
		logger.Warn("run notification failed", "error", err)
	}

	logger.Info("pipeline run finished",
		"status", run.Status,
		"loaded", run.Loaded,
		"classified", run.Classified,
		"enriched", run.Enriched,
		"warnings", len(run.Warnings),
		"duration", finished.Sub(run.StartedAt).Round(time.Millisecond))

	return run, runErr
}

func (p *Pipeline) runStages(ctx context.Context, run *model.PipelineRun, opts RunOptions, logger *slog.Logger) error {
	if !opts.SkipIngest {
		files, err := p.Fetch(ctx, opts.Years)
		if err != nil {
			return err
		}
		stats, err := p.Load(ctx, files)
		if err != nil {
			return err
		}
		for _, s := range stats {
			run.Loaded += s.Loaded
		}
	}

	stats, err := p.Classify(ctx)
	if err != nil {
		logger.Warn("classification failed", "error", err)
		run.Warnings = append(run.Warnings, fmt.Sprintf("classify: %v", err))
	} else {
		run.Classified = stats.Classified
	}

	if opts.SkipEnrich || p.enricher == nil {
		return nil
	}
	enriched, err := p.Enrich(ctx)
	run.Enriched = enriched
	if err != nil {
		logger.Warn("enrichment failed", "error", err)
		run.Warnings = append(run.Warnings, fmt.Sprintf("enrich: %v", err))
	}
	return nil
}

type noopProgress struct{}

func (noopProgress) Add(int) error { return nil }
func (noopProgress) Finish() error { return nil }
