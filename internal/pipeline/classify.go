package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/civic-flow/internal/civic"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/service"
	"golang.org/x/sync/errgroup"
)

// snapshotter is implemented by stores that can copy themselves to disk.
type snapshotter interface {
	Snapshot(ctx context.Context, dir, tag string) (string, error)
	PruneSnapshots(dir, tag string, keep int) (int, error)
}

const snapshotTag = "pre-classify"

// maxClassifyText bounds the bytes of summary and of keywords handed to the
// engine, whose cost is linear in input length. Chamber summaries run to a
// few hundred bytes.
const maxClassifyText = 16 << 10

// Classify runs the rule engine over every proposition with a summary and
// replaces all rule links in one transaction. LLM links are untouched.
func (p *Pipeline) Classify(ctx context.Context) (*service.ClassifyStats, error) {
	start := time.Now()

	categories, err := p.store.EnsureCategories(ctx, civic.DefaultCategories())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure categories: %w", err)
	}
	ids := make(map[string]int, len(categories))
	for _, c := range categories {
		ids[c.Code] = c.ID
	}

	props, err := p.store.GetPropositionsWithSummary(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get propositions: %w", err)
	}

	p.logger.Info("starting rule classification",
		"propositions", len(props),
		"workers", p.settings.Workers,
		"table_version", civic.TableVersion)

	results, err := p.classifyAll(ctx, props)
	if err != nil {
		return nil, err
	}

	stats := &service.ClassifyStats{Propositions: len(props)}
	now := p.now().UTC()
	unknown := make(map[string]bool)
	var links []model.PropositionCategory

	for i, matches := range results {
		linked := false
		for _, m := range matches {
			id, ok := ids[m.CategoryCode]
			if !ok {
				if !unknown[m.CategoryCode] {
					p.logger.Warn("skipping unknown category code", "code", m.CategoryCode)
					unknown[m.CategoryCode] = true
				}
				stats.Skipped++
				continue
			}
			links = append(links, model.PropositionCategory{
				PropositionID:  props[i].ID,
				CategoryID:     id,
				Provenance:     model.ProvenanceRule,
				MatchedPattern: m.MatchedPattern,
				Confidence:     m.Confidence,
				ClassifiedAt:   now,
			})
			linked = true
		}
		if linked {
			stats.Classified++
		}
	}

	if err := p.snapshot(ctx); err != nil {
		return nil, err
	}

	if err := p.store.ReplacePropositionCategories(ctx, model.ProvenanceRule, links); err != nil {
		return nil, fmt.Errorf("failed to store rule links: %w", err)
	}

	stats.Links = len(links)
	stats.Duration = time.Since(start)

	p.logger.Info("rule classification complete",
		"propositions", stats.Propositions,
		"classified", stats.Classified,
		"links", stats.Links,
		"skipped", stats.Skipped,
		"duration", stats.Duration.Round(time.Millisecond))

	return stats, nil
}

// classifyAll splits props into contiguous chunks, one per worker. Results
// are indexed like props, so the outcome does not depend on scheduling.
func (p *Pipeline) classifyAll(ctx context.Context, props []model.Proposition) ([][]model.CategoryMatch, error) {
	results := make([][]model.CategoryMatch, len(props))
	if len(props) == 0 {
		return results, nil
	}

	bar := p.progress(len(props), "classifying")
	defer func() { _ = bar.Finish() }()

	workers := min(p.settings.Workers, len(props))
	chunk := (len(props) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(props); lo += chunk {
		hi := min(lo+chunk, len(props))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = p.engine.Classify(clipText(props[i].Summary), clipText(props[i].Keywords))
				_ = bar.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classification interrupted: %w", err)
	}
	return results, nil
}

// clipText truncates s to maxClassifyText bytes on a rune boundary.
func clipText(s string) string {
	if len(s) <= maxClassifyText {
		return s
	}
	cut := maxClassifyText
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (p *Pipeline) snapshot(ctx context.Context) error {
	if p.settings.SnapshotDir == "" {
		return nil
	}
	s, ok := p.store.(snapshotter)
	if !ok {
		p.logger.Debug("storage does not support snapshots")
		return nil
	}

	if _, err := s.Snapshot(ctx, p.settings.SnapshotDir, snapshotTag); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	if p.settings.SnapshotKeep > 0 {
		removed, err := s.PruneSnapshots(p.settings.SnapshotDir, snapshotTag, p.settings.SnapshotKeep)
		if err != nil {
			p.logger.Warn("failed to prune snapshots", "error", err)
		} else if removed > 0 {
			p.logger.Debug("pruned old snapshots", "removed", removed)
		}
	}
	return nil
}
