// Package testutil provides database fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/civic-flow/internal/civic"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/storage"
)

// TestDB is a migrated in-memory database seeded with the default categories.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	Categories map[string]model.Category
}

// SetupTestDB creates a new in-memory test database. It runs migrations,
// seeds civic.DefaultCategories and registers cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.WithPropositions(testutil.Proposition(1, "Institui taxa de fiscalização"))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cats, err := store.EnsureCategories(ctx, civic.DefaultCategories())
	if err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}

	byCode := make(map[string]model.Category, len(cats))
	for _, c := range cats {
		byCode[c.Code] = c
	}

	return &TestDB{
		Storage:    store,
		Categories: byCode,
		t:          t,
	}
}

// WithPropositions stores props and returns the database for chaining.
func (db *TestDB) WithPropositions(props ...model.Proposition) *TestDB {
	db.t.Helper()
	if _, err := db.Storage.UpsertPropositions(context.Background(), props); err != nil {
		db.t.Fatalf("failed to seed propositions: %v", err)
	}
	return db
}

// MustCategoryID returns the database ID of code or fails the test.
func (db *TestDB) MustCategoryID(code string) int {
	db.t.Helper()
	cat, ok := db.Categories[code]
	if !ok {
		db.t.Fatalf("category %q not seeded", code)
	}
	return cat.ID
}

// LinkCodes returns the category codes linked to a proposition for source,
// in category ID order.
func (db *TestDB) LinkCodes(propositionID int64, source model.Provenance) []string {
	db.t.Helper()
	links, err := db.Storage.GetPropositionCategories(context.Background(), propositionID)
	if err != nil {
		db.t.Fatalf("failed to load links: %v", err)
	}

	byID := make(map[int]string, len(db.Categories))
	for code, c := range db.Categories {
		byID[c.ID] = code
	}

	codes := []string{}
	for _, l := range links {
		if l.Provenance == source {
			codes = append(codes, byID[l.CategoryID])
		}
	}
	return codes
}

// Proposition builds a bill with the given ID and summary.
func Proposition(id int64, summary string) model.Proposition {
	return model.Proposition{
		ID:          id,
		TypeAcronym: "PL",
		Number:      int(id),
		Year:        2024,
		Summary:     summary,
	}
}
