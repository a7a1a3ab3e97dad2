// Package civic provides the rule-based civic classification engine for
// legislative propositions.
package civic

import (
	"log/slog"

	"github.com/Veraticus/civic-flow/internal/model"
)

// RuleConfidence is the confidence reported for every rule-based match.
const RuleConfidence = 1.0

// Engine classifies proposition text against pre-compiled category patterns.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	categories []compiledCategory
}

// NewEngine compiles the pattern table once. Invalid patterns are logged
// and skipped, so construction never fails.
func NewEngine(table PatternTable, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{categories: compile(table, logger)}

	logger.Debug("civic engine initialized",
		"categories", len(e.categories),
		"patterns", e.PatternCount())

	return e
}

// NewDefaultEngine builds an engine over DefaultTable.
func NewDefaultEngine(logger *slog.Logger) *Engine {
	return NewEngine(DefaultTable(), logger)
}

// Classify returns the categories matched by summary, optionally augmented
// with keywords. An empty summary yields no matches. The result holds at
// most one match per category, in table order. Cost is linear in the
// combined input length; callers bound it.
func (e *Engine) Classify(summary, keywords string) []model.CategoryMatch {
	if summary == "" {
		return nil
	}

	text := summary
	if keywords != "" {
		text = summary + " " + keywords
	}

	var matches []model.CategoryMatch
	seen := make(map[string]bool, len(e.categories))

	for _, cat := range e.categories {
		if seen[cat.code] {
			continue
		}
		for _, p := range cat.patterns {
			if p.re.MatchString(text) {
				matches = append(matches, model.CategoryMatch{
					CategoryCode:   cat.code,
					MatchedPattern: p.raw,
					Confidence:     RuleConfidence,
				})
				seen[cat.code] = true
				break
			}
		}
	}

	return disambiguate(matches, text)
}

// Categories returns the compiled category codes in scan order.
func (e *Engine) Categories() []string {
	codes := make([]string, len(e.categories))
	for i, cat := range e.categories {
		codes[i] = cat.code
	}
	return codes
}

// PatternCount returns the number of successfully compiled patterns.
func (e *Engine) PatternCount() int {
	n := 0
	for _, cat := range e.categories {
		n += len(cat.patterns)
	}
	return n
}
