package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ UserRepository = (*PostgresUserRepository)(nil)

// PostgresUserRepository is an implementation of UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// GetByUsername retrieves a user, returning (nil, nil) when none exists.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT user_id::text, username, password_hash, created_at
              FROM users
              WHERE username=$1`

	var u User
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, query, username).Scan(&u.UserID, &u.Username, &hash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.PasswordHash = hash.String
	return &u, nil
}

// Save inserts the user or, if the username exists, replaces its password hash.
func (r *PostgresUserRepository) Save(ctx context.Context, u *User) error {
	query := `INSERT INTO users (user_id, username, password_hash, created_at)
              VALUES ($1::uuid, $2, $3, $4)
              ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`

	if _, err := r.db.ExecContext(ctx, query, u.UserID, u.Username, u.PasswordHash, u.CreatedAt); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
