package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var _ RateStore = (*PostgresStore)(nil)

// PostgresStore keeps rates in a single table keyed by (from_currency, to_currency).
type PostgresStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewPostgresStore creates a PostgresStore backed by the named table.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		now:   time.Now,
	}
}

// EnsureTable creates the rate table if it does not exist.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		from_currency VARCHAR(3) NOT NULL,
		to_currency   VARCHAR(3) NOT NULL,
		rate          DOUBLE PRECISION NOT NULL,
		expires_at    BIGINT NOT NULL,
		PRIMARY KEY (from_currency, to_currency)
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: create table %s: %v", ErrStore, s.table, err)
	}
	return nil
}

// Lookup reads the row for the pair, treating expired rows as absent.
func (s *PostgresStore) Lookup(ctx context.Context, from, to string) (RateEntry, bool, error) {
	query := fmt.Sprintf(`SELECT rate, expires_at FROM %s
              WHERE from_currency=$1 AND to_currency=$2`, s.table)

	var rate float64
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, from, to).Scan(&rate, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RateEntry{}, false, nil
		}
		return RateEntry{}, false, fmt.Errorf("%w: select %s/%s: %v", ErrStore, from, to, err)
	}

	entry := RateEntry{From: from, To: to, Rate: rate, ExpiresAt: time.Unix(expiresAt, 0).UTC()}
	if entry.Expired(s.now()) {
		return RateEntry{}, false, nil
	}
	return entry, true, nil
}

// Upsert inserts or overwrites the row for the pair.
func (s *PostgresStore) Upsert(ctx context.Context, from, to string, rate float64, ttlHours int) error {
	query := fmt.Sprintf(`INSERT INTO %s (from_currency, to_currency, rate, expires_at)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (from_currency, to_currency)
              DO UPDATE SET rate = EXCLUDED.rate, expires_at = EXCLUDED.expires_at`, s.table)

	expiresAt := ExpiresAt(s.now(), ttlHours)
	if _, err := s.db.ExecContext(ctx, query, from, to, rate, expiresAt.Unix()); err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", ErrStore, from, to, err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry is before now and returns how many were removed.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, s.table)

	result, err := s.db.ExecContext(ctx, query, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", ErrStore, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", ErrStore, err)
	}
	return rows, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}
