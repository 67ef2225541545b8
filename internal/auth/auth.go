// Package auth verifies Basic credentials against stored bcrypt password hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rateservice/internal/reqctx"
)

var (
	// ErrInvalidCredentials covers unknown users, users without a hash and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserStore indicates the user store could not be queried.
	ErrUserStore = errors.New("user store failure")
)

// dummyHash is compared against on unknown users so response time does not reveal whether a user exists.
const dummyHash = "$2a$10$.IIxpSc3OElWXLV2Wj517eUGmZ64IQgBNQ4OcFbanW85CTrgrIDQy"

// Identity is the authenticated principal.
type Identity struct {
	UserID   string
	Username string
}

// User is a stored user record.
type User struct {
	UserID       string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository defines user persistence. GetByUsername returns (nil, nil) for unknown users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, u *User) error
}

// CredentialVerifier checks a username/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*Identity, error)
}

var _ CredentialVerifier = (*BcryptVerifier)(nil)

// BcryptVerifier verifies passwords against bcrypt hashes held in a UserRepository.
type BcryptVerifier struct {
	users UserRepository
	log   *zap.SugaredLogger
}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier(users UserRepository, logger *zap.SugaredLogger) *BcryptVerifier {
	return &BcryptVerifier{users: users, log: logger}
}

// Verify returns the identity for valid credentials, ErrInvalidCredentials otherwise.
func (v *BcryptVerifier) Verify(ctx context.Context, username, password string) (*Identity, error) {
	log := v.log.With("username", username, "request_id", reqctx.RequestID(ctx))

	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		log.Errorw("User lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUserStore, err)
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		log.Warnw("User not found")
		return nil, ErrInvalidCredentials
	}
	if u.PasswordHash == "" {
		log.Warnw("User has no password hash")
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warnw("Invalid password")
		return nil, ErrInvalidCredentials
	}

	log.Debugw("Credentials verified", "user_id", u.UserID)
	return &Identity{UserID: u.UserID, Username: u.Username}, nil
}

// HashPassword returns a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser hashes password and stores the user, replacing any existing hash for username.
func CreateUser(ctx context.Context, repo UserRepository, username, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserStore, err)
	}
	return u, nil
}
