package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewPostgresStore(db, "currency-rates-test")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, mock, now
}

func TestPostgresStore_TableNameIsQuoted(t *testing.T) {
	s, _, _ := newTestPostgresStore(t)
	assert.Equal(t, `"currency-rates-test"`, s.table)
}

func TestPostgresStore_EnsureTable(t *testing.T) {
	s, mock, _ := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "currency-rates-test"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureTable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Lookup(t *testing.T) {
	query := regexp.QuoteMeta(`SELECT rate, expires_at FROM "currency-rates-test"`)

	t.Run("hit", func(t *testing.T) {
		s, mock, now := newTestPostgresStore(t)
		mock.ExpectQuery(query).WithArgs("USD", "BRL").
			WillReturnRows(sqlmock.NewRows([]string{"rate", "expires_at"}).AddRow(5.2, now.Unix()+60))

		entry, found, err := s.Lookup(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 5.2, entry.Rate)
		assert.Equal(t, now.Unix()+60, entry.ExpiresAt.Unix())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows", func(t *testing.T) {
		s, mock, _ := newTestPostgresStore(t)
		mock.ExpectQuery(query).WithArgs("USD", "BRL").
			WillReturnRows(sqlmock.NewRows([]string{"rate", "expires_at"}))

		_, found, err := s.Lookup(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("expired row", func(t *testing.T) {
		s, mock, now := newTestPostgresStore(t)
		mock.ExpectQuery(query).WithArgs("USD", "BRL").
			WillReturnRows(sqlmock.NewRows([]string{"rate", "expires_at"}).AddRow(5.2, now.Unix()-1))

		_, found, err := s.Lookup(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("expiring exactly now is still live", func(t *testing.T) {
		s, mock, now := newTestPostgresStore(t)
		mock.ExpectQuery(query).WithArgs("USD", "BRL").
			WillReturnRows(sqlmock.NewRows([]string{"rate", "expires_at"}).AddRow(5.2, now.Unix()))

		_, found, err := s.Lookup(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("driver error", func(t *testing.T) {
		s, mock, _ := newTestPostgresStore(t)
		mock.ExpectQuery(query).WithArgs("USD", "BRL").WillReturnError(errors.New("connection reset"))

		_, _, err := s.Lookup(context.Background(), "USD", "BRL")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStore))
	})
}

func TestPostgresStore_Upsert(t *testing.T) {
	query := regexp.QuoteMeta(`INSERT INTO "currency-rates-test" (from_currency, to_currency, rate, expires_at)`)

	t.Run("success", func(t *testing.T) {
		s, mock, now := newTestPostgresStore(t)
		mock.ExpectExec(query).WithArgs("USD", "EUR", 0.92, now.Unix()+3*3600).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Upsert(context.Background(), "USD", "EUR", 0.92, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		s, mock, now := newTestPostgresStore(t)
		mock.ExpectExec(query).WithArgs("USD", "EUR", 0.92, now.Unix()+3600).
			WillReturnError(errors.New("read-only transaction"))

		err := s.Upsert(context.Background(), "USD", "EUR", 0.92, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStore))
	})
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock, now := newTestPostgresStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "currency-rates-test" WHERE expires_at < $1`)).
		WithArgs(now.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock, _ := newTestPostgresStore(t)
	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
}
