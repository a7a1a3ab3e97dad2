package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// seedStorage loads three propositions and two categories.
func seedStorage(t *testing.T, store *SQLiteStorage) []model.Category {
	t.Helper()
	ctx := context.Background()

	presented := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.UpsertPropositions(ctx, []model.Proposition{
		{ID: 1, TypeAcronym: "PL", Number: 10, Year: 2024, Summary: "Institui taxa de fiscalização", PresentedAt: &presented},
		{ID: 2, TypeAcronym: "PEC", Number: 3, Year: 2024, Summary: "Altera a Lei dos Partidos Políticos"},
		{ID: 3, TypeAcronym: "REQ", Number: 99, Year: 2024, Summary: "   "},
	})
	require.NoError(t, err)

	cats, err := store.EnsureCategories(ctx, []model.Category{
		{Code: "TRIBUTACAO_AUMENTO", Name: "Aumento de tributos"},
		{Code: "POLITICA_INSTITUCIONAL", Name: "Política institucional"},
	})
	require.NoError(t, err)
	return cats
}

func ruleLink(propID int64, catID int, pattern string) model.PropositionCategory {
	return model.PropositionCategory{
		PropositionID:  propID,
		CategoryID:     catID,
		Provenance:     model.ProvenanceRule,
		Confidence:     1.0,
		MatchedPattern: pattern,
	}
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestSQLiteStorage_UpsertPropositions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	seedStorage(t, store)

	got, err := store.GetProposition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "PL 10/2024", got.Label())
	require.NotNil(t, got.PresentedAt)
	assert.Equal(t, 2024, got.PresentedAt.Year())

	// Upsert replaces the row in place.
	n, err := store.UpsertPropositions(ctx, []model.Proposition{
		{ID: 1, TypeAcronym: "PL", Number: 10, Year: 2024, Summary: "Texto revisado", Keywords: "taxa"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = store.GetProposition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Texto revisado", got.Summary)
	assert.Equal(t, "taxa", got.Keywords)
	assert.Nil(t, got.PresentedAt)

	_, err = store.GetProposition(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.UpsertPropositions(ctx, []model.Proposition{{ID: 0}})
	assert.ErrorIs(t, err, ErrInvalidProposition)
}

func TestSQLiteStorage_GetPropositionsWithSummary(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	seedStorage(t, store)

	props, err := store.GetPropositionsWithSummary(ctx, 0)
	require.NoError(t, err)
	require.Len(t, props, 2, "blank summaries are excluded")
	assert.Equal(t, int64(1), props[0].ID)
	assert.Equal(t, int64(2), props[1].ID)

	props, err = store.GetPropositionsWithSummary(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, props, 1)
}

func TestSQLiteStorage_GetUnlinkedPropositions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cats := seedStorage(t, store)

	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, cats[0].ID, "taxa"),
	}))

	props, err := store.GetUnlinkedPropositions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int64(2), props[0].ID)
}

func TestSQLiteStorage_EnsureCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	first := seedStorage(t, store)

	again, err := store.EnsureCategories(ctx, []model.Category{
		{Code: "TRIBUTACAO_AUMENTO", Name: "Aumento de impostos", Description: "novo"},
	})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].ID, again[0].ID, "ID is stable across upserts")
	assert.Equal(t, "Aumento de impostos", again[0].Name)

	all, err := store.GetCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cat, err := store.GetCategoryByCode(ctx, "POLITICA_INSTITUCIONAL")
	require.NoError(t, err)
	assert.Equal(t, first[1].ID, cat.ID)

	_, err = store.GetCategoryByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.EnsureCategories(ctx, []model.Category{{Code: "X"}})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSQLiteStorage_ReplacePropositionCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cats := seedStorage(t, store)

	llm := model.PropositionCategory{
		PropositionID: 2, CategoryID: cats[0].ID, Provenance: model.ProvenanceLLM, Confidence: 0.6,
	}
	require.NoError(t, store.UpsertPropositionCategories(ctx, []model.PropositionCategory{llm}))

	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, cats[0].ID, "taxa"),
		ruleLink(2, cats[1].ID, "partidos"),
	}))

	// A second pass replaces rule links wholesale.
	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(2, cats[1].ID, "partidos"),
	}))

	links, err := store.GetPropositionCategories(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, links)

	links, err = store.GetPropositionCategories(ctx, 2)
	require.NoError(t, err)
	require.Len(t, links, 2, "llm link survives rule replacement")
	assert.Equal(t, model.ProvenanceLLM, links[0].Provenance)
	assert.InDelta(t, 0.6, links[0].Confidence, 1e-9)
	assert.Equal(t, model.ProvenanceRule, links[1].Provenance)
	assert.Equal(t, "partidos", links[1].MatchedPattern)
	assert.False(t, links[1].ClassifiedAt.IsZero())

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RuleLinks)
	assert.Equal(t, 1, stats.LLMLinks)
	assert.Equal(t, 3, stats.Propositions)
	assert.Equal(t, 2, stats.Summarized)
}

func TestSQLiteStorage_ReplacePropositionCategories_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cats := seedStorage(t, store)
	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, cats[0].ID, "taxa"),
	}))

	tests := []struct {
		name    string
		source  model.Provenance
		wantErr error
		links   []model.PropositionCategory
	}{
		{
			name:    "unknown source",
			source:  "manual",
			wantErr: ErrInvalidProvenance,
		},
		{
			name:    "mixed provenance",
			source:  model.ProvenanceRule,
			links:   []model.PropositionCategory{{PropositionID: 1, CategoryID: cats[0].ID, Provenance: model.ProvenanceLLM, Confidence: 1}},
			wantErr: ErrInvalidLink,
		},
		{
			name:    "confidence out of range",
			source:  model.ProvenanceRule,
			links:   []model.PropositionCategory{{PropositionID: 1, CategoryID: cats[0].ID, Provenance: model.ProvenanceRule, Confidence: 1.5}},
			wantErr: ErrInvalidLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ReplacePropositionCategories(ctx, tt.source, tt.links)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Unknown category violates the foreign key and rolls back the delete.
	err := store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{ruleLink(1, 999, "x")})
	require.Error(t, err)

	links, err := store.GetPropositionCategories(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, links, 1, "failed replacement keeps previous links")
}

func TestSQLiteStorage_ReplacePropositionCategoriesFor(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cats := seedStorage(t, store)

	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, cats[0].ID, "taxa"),
		ruleLink(2, cats[1].ID, "partidos"),
	}))

	require.NoError(t, store.ReplacePropositionCategoriesFor(ctx, 1, model.ProvenanceRule, nil))

	links, err := store.GetPropositionCategories(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, links)

	links, err = store.GetPropositionCategories(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	err = store.ReplacePropositionCategoriesFor(ctx, 1, model.ProvenanceRule, []model.PropositionCategory{ruleLink(2, cats[1].ID, "x")})
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestSQLiteStorage_DeleteBySourceAndCounts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cats := seedStorage(t, store)

	require.NoError(t, store.ReplacePropositionCategories(ctx, model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, cats[0].ID, "taxa"),
		ruleLink(2, cats[0].ID, "taxa"),
		ruleLink(2, cats[1].ID, "partidos"),
	}))

	counts, err := store.GetCategoryCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "TRIBUTACAO_AUMENTO", counts[0].Code)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, model.ProvenanceRule, counts[0].Provenance)

	n, err := store.DeletePropositionCategoriesBySource(ctx, model.ProvenanceRule)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.DeletePropositionCategoriesBySource(ctx, model.ProvenanceLLM)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorage_VotesAndExpenses(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	n, err := store.UpsertDeputies(ctx, []model.Deputy{{ID: 204554, Name: "Fulana", Party: "PT", State: "SP"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	propID := int64(1)
	votedAt := time.Date(2024, 5, 2, 18, 30, 0, 0, time.UTC)
	_, err = store.UpsertVotes(ctx, []model.Vote{
		{VotingID: "2417025-55", DeputyID: 204554, PropositionID: &propID, Vote: model.VoteYes, VotedAt: votedAt},
		{VotingID: "2417025-55", DeputyID: 204554, PropositionID: &propID, Vote: model.VoteNo, VotedAt: votedAt},
	})
	require.NoError(t, err)

	_, err = store.UpsertExpenses(ctx, []model.Expense{
		{DocumentID: "7654321", DeputyID: 204554, Year: 2024, Month: 4, Category: "COMBUSTÍVEIS", NetValue: 150.25},
	})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deputies)
	assert.Equal(t, 1, stats.Votes, "votes are keyed by voting and deputy")
	assert.Equal(t, 1, stats.Expenses)

	var vote string
	require.NoError(t, store.db.QueryRow(`SELECT vote FROM votes`).Scan(&vote))
	assert.Equal(t, model.VoteNo, vote)

	_, err = store.UpsertExpenses(ctx, []model.Expense{{DocumentID: "1", DeputyID: 1, Month: 13}})
	assert.ErrorIs(t, err, ErrInvalidExpense)
	_, err = store.UpsertVotes(ctx, []model.Vote{{DeputyID: 1}})
	assert.ErrorIs(t, err, ErrInvalidVote)
	_, err = store.UpsertDeputies(ctx, []model.Deputy{{ID: 1}})
	assert.ErrorIs(t, err, ErrInvalidDeputy)
}

func TestSQLiteStorage_ETags(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	url := "https://dadosabertos.camara.leg.br/arquivos/proposicoes/csv/proposicoes-2024.csv"

	etag, err := store.GetETag(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, etag)

	require.NoError(t, store.SaveETag(ctx, url, `"abc"`))
	require.NoError(t, store.SaveETag(ctx, url, `"def"`))
	etag, err = store.GetETag(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, `"def"`, etag)

	require.NoError(t, store.SaveETag(ctx, url, ""))
	etag, err = store.GetETag(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, etag)
}

func TestSQLiteStorage_Runs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetLatestRun(ctx)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	started := time.Now().UTC().Add(-time.Minute)
	run := &model.PipelineRun{ID: "run-1", StartedAt: started, Status: model.RunRunning}
	require.NoError(t, store.StartRun(ctx, run))

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = model.RunDegraded
	run.Warnings = []string{"enrich: rate limited"}
	run.Loaded, run.Classified = 10, 7
	require.NoError(t, store.FinishRun(ctx, run))

	got, err := store.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, model.RunDegraded, got.Status)
	assert.Equal(t, []string{"enrich: rate limited"}, got.Warnings)
	assert.Equal(t, 7, got.Classified)
	require.NotNil(t, got.FinishedAt)

	err = store.FinishRun(ctx, &model.PipelineRun{ID: "missing", Status: model.RunFailed})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_Snapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	seedStorage(t, store)

	dir := t.TempDir()
	path, err := store.Snapshot(ctx, dir, "pre-classify")
	require.NoError(t, err)

	snap, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()
	stats, err := snap.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Propositions)

	_, err = store.Snapshot(ctx, dir, "../escape")
	assert.Error(t, err)

	mem, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = mem.Close() }()
	_, err = mem.Snapshot(ctx, dir, "x")
	assert.ErrorIs(t, err, ErrSnapshotUnsupported)
}
