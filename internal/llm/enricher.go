package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/service"
)

// Suggestion is the enrichment result for one proposition.
type Suggestion struct {
	Err           error
	Matches       []model.CategoryMatch
	PropositionID int64
}

// Enricher asks a language model to place propositions into the known
// civic categories.
type Enricher struct {
	client     Client
	cache      *suggestionCache
	limiter    *rateLimiter
	logger     *slog.Logger
	categories []model.Category
	codes      []string
	retryOpts  service.RetryOptions
}

// NewEnricher creates an Enricher restricted to categories.
func NewEnricher(client Client, cfg Config, categories []model.Category, logger *slog.Logger) (*Enricher, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: llm client", common.ErrMissingConfig)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories to offer", common.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	codes := make([]string, len(categories))
	for i, c := range categories {
		codes[i] = c.Code
	}

	return &Enricher{
		client:     client,
		cache:      newSuggestionCache(cfg.CacheTTL),
		limiter:    newRateLimiter(cfg.RateLimit),
		logger:     logger,
		categories: categories,
		codes:      codes,
		retryOpts:  retryOpts,
	}, nil
}

// Classify returns the categories suggested for prop. Propositions without
// a summary are not sent.
func (e *Enricher) Classify(ctx context.Context, prop model.Proposition) ([]model.CategoryMatch, error) {
	if prop.Summary == "" {
		return nil, nil
	}

	key := prop.TextHash()
	if matches, found := e.cache.get(key); found {
		e.logger.Debug("cache hit for proposition", "proposition_id", prop.ID)
		return matches, nil
	}

	prompt := buildPrompt(prop, e.categories)

	var reply string
	err := common.WithRetry(ctx, func() error {
		if err := e.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		var callErr error
		reply, callErr = e.client.Complete(ctx, systemPrompt, prompt)
		return callErr
	}, e.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: proposition %d: %w", common.ErrEnrichmentFailed, prop.ID, err)
	}

	matches, unknown, err := parseCategories(reply, e.codes)
	if err != nil {
		return nil, fmt.Errorf("%w: proposition %d: %w", common.ErrEnrichmentFailed, prop.ID, err)
	}
	if len(unknown) > 0 {
		e.logger.Warn("dropping unknown category codes",
			"proposition_id", prop.ID,
			"codes", unknown)
	}

	e.cache.set(key, matches)

	e.logger.Info("proposition enriched",
		"proposition_id", prop.ID,
		"label", prop.Label(),
		"categories", len(matches))

	return matches, nil
}

// ClassifyBatch classifies props with up to workers concurrent requests.
// Per-proposition failures are reported in each Suggestion; the returned
// error is non-nil only when ctx ends the batch early.
func (e *Enricher) ClassifyBatch(ctx context.Context, props []model.Proposition, workers int) ([]Suggestion, error) {
	if workers <= 0 {
		workers = 4
	}

	suggestions := make([]Suggestion, len(props))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, prop := range props {
		wg.Add(1)
		go func(idx int, p model.Proposition) {
			defer wg.Done()
			suggestions[idx].PropositionID = p.ID

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				suggestions[idx].Err = ctx.Err()
				return
			}

			suggestions[idx].Matches, suggestions[idx].Err = e.Classify(ctx, p)
		}(i, prop)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return suggestions, err
	}
	return suggestions, nil
}

// Close releases background resources.
func (e *Enricher) Close() {
	e.cache.Close()
}

// FailedCount returns how many suggestions carry an error.
func FailedCount(suggestions []Suggestion) int {
	n := 0
	for _, s := range suggestions {
		if s.Err != nil {
			n++
		}
	}
	return n
}
