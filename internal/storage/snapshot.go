package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrSnapshotUnsupported is returned when snapshotting an in-memory database.
var ErrSnapshotUnsupported = errors.New("snapshots require a file-backed database")

var snapshotTagRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Snapshot writes a consistent copy of the database to dir, named after tag
// and the current time, and returns its path. It is taken before rule links
// are rebuilt so a bad pattern table can be rolled back by hand.
func (s *SQLiteStorage) Snapshot(ctx context.Context, dir, tag string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if s.dbPath == ":memory:" {
		return "", ErrSnapshotUnsupported
	}
	if !snapshotTagRe.MatchString(tag) {
		return "", fmt.Errorf("invalid snapshot tag %q: use letters, digits, '-' or '_'", tag)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.db", tag, time.Now().UTC().Format("20060102T150405")))
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", dest)
	}

	// VACUUM INTO takes a literal, not a bound parameter.
	quoted := strings.ReplaceAll(dest, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	slog.Info("created database snapshot", "path", dest)
	return dest, nil
}

// PruneSnapshots keeps the newest keep snapshots for tag in dir and removes
// the rest. It returns the number of files removed.
func (s *SQLiteStorage) PruneSnapshots(dir, tag string, keep int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, tag+"-*.db"))
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if keep < 0 {
		keep = 0
	}
	if len(matches) <= keep {
		return 0, nil
	}

	// Names embed a sortable UTC timestamp.
	sort.Strings(matches)
	removed := 0
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove old snapshot", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
