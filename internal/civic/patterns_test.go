package civic

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	require.Len(t, table, 9)

	total := 0
	seen := make(map[string]bool)
	for _, cat := range table {
		assert.False(t, seen[cat.Code], "duplicate code %s", cat.Code)
		seen[cat.Code] = true
		assert.GreaterOrEqual(t, len(cat.Patterns), 3, cat.Code)
		assert.LessOrEqual(t, len(cat.Patterns), 12, cat.Code)

		for _, p := range cat.Patterns {
			_, err := regexp.Compile("(?i)" + p)
			assert.NoError(t, err, "%s: %s", cat.Code, p)
		}
		total += len(cat.Patterns)
	}

	assert.Equal(t, total, NewDefaultEngine(nil).PatternCount())
}

func TestDefaultCategories_CoverTable(t *testing.T) {
	byCode := make(map[string]bool)
	for _, c := range DefaultCategories() {
		assert.NotEmpty(t, c.Name, c.Code)
		assert.NotEmpty(t, c.Description, c.Code)
		byCode[c.Code] = true
	}

	for _, cat := range DefaultTable() {
		assert.True(t, byCode[cat.Code], "missing metadata for %s", cat.Code)
	}
	assert.Len(t, byCode, len(DefaultTable()))
}

func TestDefaultTable_ConflictRulesReferenceKnownCodes(t *testing.T) {
	known := make(map[string]bool)
	for _, cat := range DefaultTable() {
		known[cat.Code] = true
	}

	for _, rule := range conflictRules {
		assert.True(t, known[rule.onCue], rule.name)
		assert.True(t, known[rule.other], rule.name)
	}
}
