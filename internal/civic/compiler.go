package civic

import (
	"log/slog"
	"regexp"
	"sort"
)

// CategoryPatterns holds the raw patterns configured for one category code.
type CategoryPatterns struct {
	Code     string
	Patterns []string
}

// PatternTable maps category codes to raw regular expressions. Its order is
// the order categories are scanned and reported in.
type PatternTable []CategoryPatterns

// TableFromMap builds a PatternTable from an unordered mapping. Codes are
// sorted so the result does not depend on map iteration order.
func TableFromMap(m map[string][]string) PatternTable {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	table := make(PatternTable, 0, len(codes))
	for _, code := range codes {
		patterns := make([]string, len(m[code]))
		copy(patterns, m[code])
		table = append(table, CategoryPatterns{Code: code, Patterns: patterns})
	}
	return table
}

// compiledPattern pairs a compiled regex with the string it was built from.
type compiledPattern struct {
	re  *regexp.Regexp
	raw string
}

// compiledCategory is the immutable, ready-to-match form of a category.
type compiledCategory struct {
	code     string
	patterns []compiledPattern
}

// compile turns a pattern table into compiled categories. Invalid patterns
// are logged and dropped; their category is kept even if nothing compiles.
func compile(table PatternTable, logger *slog.Logger) []compiledCategory {
	compiled := make([]compiledCategory, 0, len(table))

	for _, cat := range table {
		cc := compiledCategory{
			code:     cat.Code,
			patterns: make([]compiledPattern, 0, len(cat.Patterns)),
		}

		for _, raw := range cat.Patterns {
			re, err := regexp.Compile("(?i)" + raw)
			if err != nil {
				logger.Warn("skipping invalid pattern",
					"category", cat.Code,
					"pattern", raw,
					"error", err)
				continue
			}
			cc.patterns = append(cc.patterns, compiledPattern{re: re, raw: raw})
		}

		compiled = append(compiled, cc)
	}

	return compiled
}
