package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplacePropositionCategories_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	store := newWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM proposition_categories WHERE source = ?`)).
		WithArgs("rule").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO proposition_categories`)).
		ExpectExec().
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = store.ReplacePropositionCategories(context.Background(), model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, 1, "taxa"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePropositionCategories_CommitsDeleteAndInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	store := newWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM proposition_categories WHERE source = ?`)).
		WithArgs("rule").
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO proposition_categories`))
	prep.ExpectExec().
		WithArgs(int64(1), 1, "rule", 1.0, "taxa", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(int64(2), 3, "rule", 1.0, "partidos", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = store.ReplacePropositionCategories(context.Background(), model.ProvenanceRule, []model.PropositionCategory{
		ruleLink(1, 1, "taxa"),
		ruleLink(2, 3, "partidos"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	store := newWithDB(db)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("database is locked"))

	_, err = store.Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query table stats")
	assert.NoError(t, mock.ExpectationsWereMet())
}
