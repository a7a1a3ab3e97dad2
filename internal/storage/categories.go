package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
)

// EnsureCategories inserts missing categories and refreshes the name and
// description of existing ones, keyed by code. It returns the categories
// in input order with their database IDs.
func (s *SQLiteStorage) EnsureCategories(ctx context.Context, categories []model.Category) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	for i := range categories {
		if err := validateCategory(&categories[i]); err != nil {
			return nil, err
		}
	}

	out := make([]model.Category, 0, len(categories))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO categories (code, name, description)
			VALUES (?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				description = excluded.description`)
		if err != nil {
			return fmt.Errorf("failed to prepare category upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, cat := range categories {
			if _, err := stmt.ExecContext(ctx, cat.Code, cat.Name, cat.Description); err != nil {
				return fmt.Errorf("failed to upsert category %s: %w", cat.Code, err)
			}

			var stored model.Category
			if err := tx.QueryRowContext(ctx, `
				SELECT id, code, name, description, created_at
				FROM categories WHERE code = ?`, cat.Code).Scan(
				&stored.ID, &stored.Code, &stored.Name, &stored.Description, &stored.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to read back category %s: %w", cat.Code, err)
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("ensured categories", "count", len(out))
	return out, nil
}

// GetCategories returns all categories ordered by ID.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, description, created_at
		FROM categories
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer closeRows(rows)

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Code, &cat.Name, &cat.Description, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// GetCategoryByCode returns the category with the given code, or an error
// wrapping common.ErrNotFound.
func (s *SQLiteStorage) GetCategoryByCode(ctx context.Context, code string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	var cat model.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, description, created_at
		FROM categories WHERE code = ?`, code).Scan(
		&cat.ID, &cat.Code, &cat.Name, &cat.Description, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", code, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}
