package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopTransactor(t *testing.T) {
	called := false
	err := NopTransactor{}.WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = NopTransactor{}.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

type stubQuerier struct{ Querier }

func TestQuerierFromContext_Fallback(t *testing.T) {
	fallback := stubQuerier{}
	assert.Equal(t, fallback, QuerierFromContext(context.Background(), fallback))
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "subs", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=subs sslmode=disable", cfg.DSN())
}

func newMockTransactor(t *testing.T) (*Transactor, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewTransactor(conn), mock
}

func TestTransactor_Commit(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, nil)
		_, isTx := q.(*sql.Tx)
		assert.True(t, isTx)
		_, err := q.ExecContext(ctx, "UPDATE submissions SET content = $1", "x")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollbackOnError(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollbackOnPanic(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_CommitFailure(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestTransactor_ReusesOuterTransaction(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tr.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return tr.WithinTransaction(ctx, func(ctx context.Context) error { return nil })
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
