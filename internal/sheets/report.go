package sheets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/service"
)

// Source is the subset of storage a report is built from.
type Source interface {
	Stats(ctx context.Context) (*service.TableStats, error)
	GetCategoryCounts(ctx context.Context) ([]model.CategoryCount, error)
	GetLatestRun(ctx context.Context) (*model.PipelineRun, error)
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Code      string
	Name      string
	RuleLinks int
	LLMLinks  int
}

// Total returns the number of links from either source.
func (r CategoryRow) Total() int {
	return r.RuleLinks + r.LLMLinks
}

// Report is a point-in-time summary of the classification database.
type Report struct {
	GeneratedAt time.Time
	Stats       service.TableStats
	LatestRun   *model.PipelineRun
	Categories  []CategoryRow
}

// BuildReport collects table counts, per-category link counts and the latest
// pipeline run from src. LatestRun is nil when no run was recorded.
func BuildReport(ctx context.Context, src Source, now time.Time) (*Report, error) {
	stats, err := src.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	counts, err := src.GetCategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get category counts: %w", err)
	}

	run, err := src.GetLatestRun(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &Report{
		GeneratedAt: now,
		Stats:       *stats,
		LatestRun:   run,
		Categories:  categoryRows(counts),
	}, nil
}

// categoryRows folds per-provenance counts into one row per category, most
// linked first.
func categoryRows(counts []model.CategoryCount) []CategoryRow {
	byCode := make(map[string]*CategoryRow)
	order := make([]string, 0, len(counts))

	for _, c := range counts {
		row, ok := byCode[c.Code]
		if !ok {
			row = &CategoryRow{Code: c.Code, Name: c.Name}
			byCode[c.Code] = row
			order = append(order, c.Code)
		}
		switch c.Provenance {
		case model.ProvenanceRule:
			row.RuleLinks += c.Count
		case model.ProvenanceLLM:
			row.LLMLinks += c.Count
		}
	}

	rows := make([]CategoryRow, 0, len(order))
	for _, code := range order {
		rows = append(rows, *byCode[code])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total() != rows[j].Total() {
			return rows[i].Total() > rows[j].Total()
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}
