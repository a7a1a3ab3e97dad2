package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
)

// UpsertDeputies inserts or replaces deputies by ID.
func (s *SQLiteStorage) UpsertDeputies(ctx context.Context, deputies []model.Deputy) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i, d := range deputies {
		if d.ID <= 0 || strings.TrimSpace(d.Name) == "" {
			return 0, fmt.Errorf("deputy at index %d: %w", i, ErrInvalidDeputy)
		}
	}

	return len(deputies), s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO deputies (id, name, civil_name, party, state, sex, email, birth_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				civil_name = excluded.civil_name,
				party = excluded.party,
				state = excluded.state,
				sex = excluded.sex,
				email = excluded.email,
				birth_date = excluded.birth_date,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("failed to prepare deputy upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, d := range deputies {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Name, d.CivilName, d.Party, d.State, d.Sex, d.Email, nullTime(d.BirthDate)); err != nil {
				return fmt.Errorf("failed to upsert deputy %d: %w", d.ID, err)
			}
		}
		return nil
	})
}

// UpsertPropositions inserts or replaces propositions by ID. Existing
// category links are left untouched.
func (s *SQLiteStorage) UpsertPropositions(ctx context.Context, propositions []model.Proposition) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i := range propositions {
		if err := validateProposition(&propositions[i]); err != nil {
			return 0, fmt.Errorf("proposition at index %d: %w", i, err)
		}
	}

	return len(propositions), s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO propositions (id, type_acronym, number, year, summary, keywords, uri, presented_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				type_acronym = excluded.type_acronym,
				number = excluded.number,
				year = excluded.year,
				summary = excluded.summary,
				keywords = excluded.keywords,
				uri = excluded.uri,
				presented_at = excluded.presented_at,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("failed to prepare proposition upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, p := range propositions {
			if _, err := stmt.ExecContext(ctx, p.ID, p.TypeAcronym, p.Number, p.Year,
				p.Summary, p.Keywords, p.URI, nullTime(p.PresentedAt)); err != nil {
				return fmt.Errorf("failed to upsert proposition %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpsertVotes inserts or replaces votes keyed by voting and deputy.
func (s *SQLiteStorage) UpsertVotes(ctx context.Context, votes []model.Vote) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i := range votes {
		if err := validateVote(&votes[i]); err != nil {
			return 0, fmt.Errorf("vote at index %d: %w", i, err)
		}
	}

	return len(votes), s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO votes (voting_id, deputy_id, proposition_id, vote, voted_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(voting_id, deputy_id) DO UPDATE SET
				proposition_id = excluded.proposition_id,
				vote = excluded.vote,
				voted_at = excluded.voted_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare vote upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, v := range votes {
			var propID sql.NullInt64
			if v.PropositionID != nil {
				propID = sql.NullInt64{Int64: *v.PropositionID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, v.VotingID, v.DeputyID, propID, v.Vote, v.VotedAt); err != nil {
				return fmt.Errorf("failed to upsert vote %s/%d: %w", v.VotingID, v.DeputyID, err)
			}
		}
		return nil
	})
}

// UpsertExpenses inserts or replaces expenses by document ID.
func (s *SQLiteStorage) UpsertExpenses(ctx context.Context, expenses []model.Expense) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i := range expenses {
		if err := validateExpense(&expenses[i]); err != nil {
			return 0, fmt.Errorf("expense at index %d: %w", i, err)
		}
	}

	return len(expenses), s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO expenses (document_id, deputy_id, year, month, category, supplier, supplier_doc, net_value, issued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET
				deputy_id = excluded.deputy_id,
				year = excluded.year,
				month = excluded.month,
				category = excluded.category,
				supplier = excluded.supplier,
				supplier_doc = excluded.supplier_doc,
				net_value = excluded.net_value,
				issued_at = excluded.issued_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare expense upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range expenses {
			if _, err := stmt.ExecContext(ctx, e.DocumentID, e.DeputyID, e.Year, e.Month,
				e.Category, e.Supplier, e.SupplierDoc, e.NetValue, nullTime(e.IssuedAt)); err != nil {
				return fmt.Errorf("failed to upsert expense %s: %w", e.DocumentID, err)
			}
		}
		return nil
	})
}

const propositionColumns = `id, type_acronym, number, year, summary, keywords, uri, presented_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposition(row rowScanner) (model.Proposition, error) {
	var (
		p           model.Proposition
		acronym     sql.NullString
		number      sql.NullInt64
		year        sql.NullInt64
		summary     sql.NullString
		keywords    sql.NullString
		uri         sql.NullString
		presentedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &acronym, &number, &year, &summary, &keywords, &uri, &presentedAt); err != nil {
		return p, err
	}
	p.TypeAcronym = acronym.String
	p.Number = int(number.Int64)
	p.Year = int(year.Int64)
	p.Summary = summary.String
	p.Keywords = keywords.String
	p.URI = uri.String
	if presentedAt.Valid {
		t := presentedAt.Time
		p.PresentedAt = &t
	}
	return p, nil
}

// GetProposition returns a proposition by ID, or an error wrapping
// common.ErrNotFound.
func (s *SQLiteStorage) GetProposition(ctx context.Context, id int64) (*model.Proposition, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	p, err := scanProposition(s.db.QueryRowContext(ctx,
		`SELECT `+propositionColumns+` FROM propositions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposition %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proposition: %w", err)
	}
	return &p, nil
}

// GetPropositionsWithSummary returns propositions whose summary is not
// blank, ordered by ID. A limit of zero or less returns all of them.
func (s *SQLiteStorage) GetPropositionsWithSummary(ctx context.Context, limit int) ([]model.Proposition, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + propositionColumns + `
		FROM propositions
		WHERE summary IS NOT NULL AND TRIM(summary) != ''
		ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryPropositions(ctx, query, args...)
}

// GetUnlinkedPropositions returns propositions with a summary and no
// category link of any source, ordered by ID. A limit of zero or less
// returns all of them.
func (s *SQLiteStorage) GetUnlinkedPropositions(ctx context.Context, limit int) ([]model.Proposition, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + propositionColumns + `
		FROM propositions p
		WHERE p.summary IS NOT NULL AND TRIM(p.summary) != ''
			AND NOT EXISTS (
				SELECT 1 FROM proposition_categories pc WHERE pc.proposition_id = p.id
			)
		ORDER BY p.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryPropositions(ctx, query, args...)
}

func (s *SQLiteStorage) queryPropositions(ctx context.Context, query string, args ...any) ([]model.Proposition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query propositions: %w", err)
	}
	defer closeRows(rows)

	var props []model.Proposition
	for rows.Next() {
		p, err := scanProposition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposition: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating propositions: %w", err)
	}
	return props, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
