package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/civic-flow/internal/model"
)

const upsertLinkSQL = `
	INSERT INTO proposition_categories
		(proposition_id, category_id, source, confidence, matched_pattern, classified_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(proposition_id, category_id, source) DO UPDATE SET
		confidence = excluded.confidence,
		matched_pattern = excluded.matched_pattern,
		classified_at = excluded.classified_at`

// ReplacePropositionCategories deletes every link with the given source and
// writes links in its place, in a single transaction. Links of other
// sources are untouched.
func (s *SQLiteStorage) ReplacePropositionCategories(ctx context.Context, source model.Provenance, links []model.PropositionCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinks(source, links); err != nil {
		return err
	}

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM proposition_categories WHERE source = ?`, string(source))
		if err != nil {
			return fmt.Errorf("failed to delete %s links: %w", source, err)
		}
		deleted, _ = res.RowsAffected()
		return insertLinks(ctx, tx, links)
	})
	if err != nil {
		return err
	}

	slog.Debug("replaced proposition categories",
		"source", source,
		"deleted", deleted,
		"inserted", len(links))
	return nil
}

// ReplacePropositionCategoriesFor is ReplacePropositionCategories scoped to
// one proposition.
func (s *SQLiteStorage) ReplacePropositionCategoriesFor(ctx context.Context, propositionID int64, source model.Provenance, links []model.PropositionCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinks(source, links); err != nil {
		return err
	}
	for _, l := range links {
		if l.PropositionID != propositionID {
			return fmt.Errorf("%w: link for proposition %d in batch for %d", ErrInvalidLink, l.PropositionID, propositionID)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM proposition_categories WHERE proposition_id = ? AND source = ?`,
			propositionID, string(source)); err != nil {
			return fmt.Errorf("failed to delete %s links for %d: %w", source, propositionID, err)
		}
		return insertLinks(ctx, tx, links)
	})
}

// UpsertPropositionCategories writes links without deleting anything.
func (s *SQLiteStorage) UpsertPropositionCategories(ctx context.Context, links []model.PropositionCategory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i := range links {
		if err := validateLink(&links[i], ""); err != nil {
			return fmt.Errorf("link at index %d: %w", i, err)
		}
	}
	if len(links) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertLinks(ctx, tx, links)
	})
}

// DeletePropositionCategoriesBySource removes all links with the given
// source and reports how many were deleted.
func (s *SQLiteStorage) DeletePropositionCategoriesBySource(ctx context.Context, source model.Provenance) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateProvenance(source); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM proposition_categories WHERE source = ?`, string(source))
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s links: %w", source, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted links: %w", err)
	}
	return n, nil
}

// GetPropositionCategories returns the links of one proposition ordered by
// source and category.
func (s *SQLiteStorage) GetPropositionCategories(ctx context.Context, propositionID int64) ([]model.PropositionCategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT proposition_id, category_id, source, confidence, matched_pattern, classified_at
		FROM proposition_categories
		WHERE proposition_id = ?
		ORDER BY source, category_id`, propositionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposition categories: %w", err)
	}
	defer closeRows(rows)

	var links []model.PropositionCategory
	for rows.Next() {
		var (
			l       model.PropositionCategory
			source  string
			pattern sql.NullString
		)
		if err := rows.Scan(&l.PropositionID, &l.CategoryID, &source, &l.Confidence, &pattern, &l.ClassifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposition category: %w", err)
		}
		l.Provenance = model.Provenance(source)
		l.MatchedPattern = pattern.String
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposition categories: %w", err)
	}
	return links, nil
}

// GetCategoryCounts returns the number of linked propositions per category
// and source, ordered by count descending.
func (s *SQLiteStorage) GetCategoryCounts(ctx context.Context) ([]model.CategoryCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.code, c.name, pc.source, COUNT(*) AS n
		FROM proposition_categories pc
		JOIN categories c ON c.id = pc.category_id
		GROUP BY c.code, c.name, pc.source
		ORDER BY n DESC, c.code, pc.source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer closeRows(rows)

	var counts []model.CategoryCount
	for rows.Next() {
		var (
			c      model.CategoryCount
			source string
		)
		if err := rows.Scan(&c.Code, &c.Name, &source, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		c.Provenance = model.Provenance(source)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}
	return counts, nil
}

func validateLinks(source model.Provenance, links []model.PropositionCategory) error {
	if err := validateProvenance(source); err != nil {
		return err
	}
	for i := range links {
		if err := validateLink(&links[i], source); err != nil {
			return fmt.Errorf("link at index %d: %w", i, err)
		}
	}
	return nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, links []model.PropositionCategory) error {
	if len(links) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, upsertLinkSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare link upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, l := range links {
		at := l.ClassifiedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, l.PropositionID, l.CategoryID, string(l.Provenance),
			l.Confidence, l.MatchedPattern, at); err != nil {
			return fmt.Errorf("failed to upsert link %d/%d: %w", l.PropositionID, l.CategoryID, err)
		}
	}
	return nil
}
