package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/llm"
	"github.com/Veraticus/civic-flow/internal/model"
)

// Enrich sends propositions that have no category link to the LLM and
// stores its suggestions with provenance "llm", one proposition at a time.
// It returns the number of propositions that received at least one link.
func (p *Pipeline) Enrich(ctx context.Context) (int, error) {
	if p.enricher == nil {
		return 0, fmt.Errorf("%w: llm enricher", common.ErrMissingConfig)
	}

	categories, err := p.store.GetCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get categories: %w", err)
	}
	ids := make(map[string]int, len(categories))
	for _, c := range categories {
		ids[c.Code] = c.ID
	}

	props, err := p.store.GetUnlinkedPropositions(ctx, p.settings.EnrichLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to get unlinked propositions: %w", err)
	}
	if len(props) == 0 {
		p.logger.Info("no propositions need enrichment")
		return 0, nil
	}

	start := time.Now()
	p.logger.Info("starting llm enrichment",
		"propositions", len(props),
		"workers", p.settings.EnrichWorkers)

	suggestions, batchErr := p.enricher.ClassifyBatch(ctx, props, p.settings.EnrichWorkers)

	enriched := 0
	for _, s := range suggestions {
		if s.Err != nil || len(s.Matches) == 0 {
			continue
		}
		links := p.llmLinks(s, ids)
		if len(links) == 0 {
			continue
		}
		if err := p.store.ReplacePropositionCategoriesFor(context.WithoutCancel(ctx), s.PropositionID, model.ProvenanceLLM, links); err != nil {
			return enriched, fmt.Errorf("failed to store llm links for %d: %w", s.PropositionID, err)
		}
		enriched++
	}

	failed := llm.FailedCount(suggestions)
	p.logger.Info("llm enrichment complete",
		"propositions", len(props),
		"enriched", enriched,
		"failed", failed,
		"duration", time.Since(start).Round(time.Millisecond))

	if batchErr != nil {
		return enriched, fmt.Errorf("%w: %w", common.ErrEnrichmentFailed, batchErr)
	}
	if failed == len(suggestions) {
		return enriched, fmt.Errorf("%w: all %d requests failed", common.ErrEnrichmentFailed, failed)
	}
	return enriched, nil
}

func (p *Pipeline) llmLinks(s llm.Suggestion, ids map[string]int) []model.PropositionCategory {
	now := p.now().UTC()
	links := make([]model.PropositionCategory, 0, len(s.Matches))
	for _, m := range s.Matches {
		id, ok := ids[m.CategoryCode]
		if !ok {
			p.logger.Warn("skipping unknown category code",
				"code", m.CategoryCode,
				"proposition_id", s.PropositionID)
			continue
		}
		links = append(links, model.PropositionCategory{
			PropositionID: s.PropositionID,
			CategoryID:    id,
			Provenance:    model.ProvenanceLLM,
			Confidence:    m.Confidence,
			ClassifiedAt:  now,
		})
	}
	return links
}
