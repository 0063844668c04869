package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/store/postgres"
)

func newStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewStore(sqlx.NewDb(db, "pgx")), mock
}

func TestStore_Get(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("job:1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"status":"pending"}`)))

	got, err := s.Get(context.Background(), "job:1")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"pending"}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMissing(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries`)).
		WithArgs("job:404", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "job:404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SetUpserts(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_entries (key, value, expires_at, updated_at)`)).
		WithArgs("ocr:Akshay", []byte("x"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "ocr:Akshay", []byte("x"), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_KeysEscapesPrefix(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key FROM kv_entries WHERE key LIKE $1`)).
		WithArgs(`form:a\_b%`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("form:a_b"))

	keys, err := s.Keys(context.Background(), "form:a_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"form:a_b"}, keys)
}

func TestStore_Purge(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_entries WHERE expires_at IS NOT NULL`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
