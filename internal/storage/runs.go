package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/service"
)

// StartRun records a new pipeline run.
func (s *SQLiteStorage) StartRun(ctx context.Context, run *model.PipelineRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, started_at, status)
		VALUES (?, ?, ?)`, run.ID, run.StartedAt.UTC(), string(run.Status))
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run started with StartRun.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *model.PipelineRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs SET
			finished_at = ?, status = ?, error = ?, warnings = ?,
			loaded = ?, classified = ?, enriched = ?
		WHERE id = ?`,
		nullTime(run.FinishedAt), string(run.Status), run.Error, string(encoded),
		run.Loaded, run.Classified, run.Enriched, run.ID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	return nil
}

// GetLatestRun returns the most recently started run, or an error wrapping
// common.ErrNotFound when no run has been recorded.
func (s *SQLiteStorage) GetLatestRun(ctx context.Context) (*model.PipelineRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		run        model.PipelineRun
		status     string
		finishedAt sql.NullTime
		runErr     sql.NullString
		warnings   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, error, warnings, loaded, classified, enriched
		FROM pipeline_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1`).Scan(&run.ID, &run.StartedAt, &finishedAt, &status, &runErr, &warnings,
		&run.Loaded, &run.Classified, &run.Enriched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pipeline run: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	run.Status = model.RunStatus(status)
	run.Error = runErr.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return &run, nil
}

// Stats returns row counts for the main tables.
func (s *SQLiteStorage) Stats(ctx context.Context) (*service.TableStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var stats service.TableStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM deputies),
			(SELECT COUNT(*) FROM propositions),
			(SELECT COUNT(*) FROM propositions WHERE summary IS NOT NULL AND TRIM(summary) != ''),
			(SELECT COUNT(*) FROM votes),
			(SELECT COUNT(*) FROM expenses),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM proposition_categories WHERE source = 'rule'),
			(SELECT COUNT(*) FROM proposition_categories WHERE source = 'llm')`).Scan(
		&stats.Deputies, &stats.Propositions, &stats.Summarized, &stats.Votes,
		&stats.Expenses, &stats.Categories, &stats.RuleLinks, &stats.LLMLinks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query table stats: %w", err)
	}
	return &stats, nil
}

var _ service.Storage = (*SQLiteStorage)(nil)
