package civic

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_InvalidPatternSkipped(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine := NewEngine(PatternTable{
		{Code: "TRIB", Patterns: []string{"[invalid", "tributo"}},
		{Code: "EMPTY", Patterns: []string{"(unclosed"}},
		{Code: "NONE", Patterns: nil},
	}, logger)

	require.NotNil(t, engine)
	assert.Equal(t, 1, engine.PatternCount())
	assert.Equal(t, []string{"TRIB", "EMPTY", "NONE"}, engine.Categories())

	got := engine.Classify("Altera tributo federal (unclosed", "")
	require.Len(t, got, 1)
	assert.Equal(t, "TRIB", got[0].CategoryCode)
	assert.Equal(t, "tributo", got[0].MatchedPattern)

	logs := buf.String()
	assert.Contains(t, logs, "skipping invalid pattern")
	assert.Contains(t, logs, "category=TRIB")
	assert.Contains(t, logs, "category=EMPTY")
}

func TestCompile_CaseInsensitive(t *testing.T) {
	compiled := compile(PatternTable{{Code: "X", Patterns: []string{"isen[çc][ãa]o"}}}, slog.Default())

	require.Len(t, compiled, 1)
	require.Len(t, compiled[0].patterns, 1)
	assert.True(t, compiled[0].patterns[0].re.MatchString("ISENÇÃO"))
	assert.Equal(t, "isen[çc][ãa]o", compiled[0].patterns[0].raw)
}

func TestTableFromMap(t *testing.T) {
	raw := map[string][]string{
		"ZETA":  {"z1", "z2"},
		"ALPHA": {"a1"},
		"MID":   {},
	}

	table := TableFromMap(raw)
	require.Len(t, table, 3)
	assert.Equal(t, "ALPHA", table[0].Code)
	assert.Equal(t, "MID", table[1].Code)
	assert.Equal(t, "ZETA", table[2].Code)
	assert.Equal(t, []string{"z1", "z2"}, table[2].Patterns)

	raw["ZETA"][0] = "changed"
	assert.Equal(t, "z1", table[2].Patterns[0])

	again := TableFromMap(raw)
	assert.Equal(t, []string{"ALPHA", "MID", "ZETA"}, []string{again[0].Code, again[1].Code, again[2].Code})
}
