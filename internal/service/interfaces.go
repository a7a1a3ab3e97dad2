// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/civic-flow/internal/model"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Legislative data
	UpsertDeputies(ctx context.Context, deputies []model.Deputy) (int, error)
	UpsertPropositions(ctx context.Context, propositions []model.Proposition) (int, error)
	UpsertVotes(ctx context.Context, votes []model.Vote) (int, error)
	UpsertExpenses(ctx context.Context, expenses []model.Expense) (int, error)
	GetProposition(ctx context.Context, id int64) (*model.Proposition, error)
	GetPropositionsWithSummary(ctx context.Context, limit int) ([]model.Proposition, error)
	GetUnlinkedPropositions(ctx context.Context, limit int) ([]model.Proposition, error)

	// Category operations
	EnsureCategories(ctx context.Context, categories []model.Category) ([]model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByCode(ctx context.Context, code string) (*model.Category, error)

	// Proposition-category links
	ReplacePropositionCategories(ctx context.Context, source model.Provenance, links []model.PropositionCategory) error
	ReplacePropositionCategoriesFor(ctx context.Context, propositionID int64, source model.Provenance, links []model.PropositionCategory) error
	UpsertPropositionCategories(ctx context.Context, links []model.PropositionCategory) error
	DeletePropositionCategoriesBySource(ctx context.Context, source model.Provenance) (int64, error)
	GetPropositionCategories(ctx context.Context, propositionID int64) ([]model.PropositionCategory, error)
	GetCategoryCounts(ctx context.Context) ([]model.CategoryCount, error)

	// HTTP cache
	GetETag(ctx context.Context, url string) (string, error)
	SaveETag(ctx context.Context, url, etag string) error

	// Pipeline runs
	StartRun(ctx context.Context, run *model.PipelineRun) error
	FinishRun(ctx context.Context, run *model.PipelineRun) error
	GetLatestRun(ctx context.Context) (*model.PipelineRun, error)

	// Database management
	Stats(ctx context.Context) (*TableStats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// TableStats holds row counts for the main tables.
type TableStats struct {
	Deputies     int
	Propositions int
	Summarized   int
	Votes        int
	Expenses     int
	Categories   int
	RuleLinks    int
	LLMLinks     int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ClassifyStats summarizes a classification pass.
type ClassifyStats struct {
	Propositions int
	Classified   int
	Links        int
	Skipped      int
	Duration     time.Duration
}

// LoadStats summarizes loading one dataset.
type LoadStats struct {
	Dataset  string
	Rows     int
	Loaded   int
	Skipped  int
	Duration time.Duration
}
