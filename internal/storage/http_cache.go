package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetETag returns the stored validator for url, or "" when none is known.
func (s *SQLiteStorage) GetETag(ctx context.Context, url string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var etag string
	err := s.db.QueryRowContext(ctx, `SELECT etag FROM http_cache WHERE url = ?`, url).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query etag: %w", err)
	}
	return etag, nil
}

// SaveETag records the validator returned for url. An empty etag clears it.
func (s *SQLiteStorage) SaveETag(ctx context.Context, url, etag string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(url, "url"); err != nil {
		return err
	}

	if etag == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM http_cache WHERE url = ?`, url); err != nil {
			return fmt.Errorf("failed to clear etag: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO http_cache (url, etag, fetched_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			etag = excluded.etag,
			fetched_at = CURRENT_TIMESTAMP`, url, etag)
	if err != nil {
		return fmt.Errorf("failed to save etag: %w", err)
	}
	return nil
}
