package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/models"
)

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// Run fn with storage bound to one db transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, fullName string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// RefreshToken repository interface
//
// Operations on a user that holds no tokens are normal outcomes, not
// errors: FindMatching/OldestForUser return apperrors.ErrRefreshTokenNotFound,
// CountForUser returns zero, deletes are no-ops.
type RefreshTokenRepo interface {
	// Save hashes the bearer value with a fresh per-record salt and stores
	// the record. The plaintext bearer is never persisted.
	Save(ctx context.Context, userID uuid.UUID, bearer string, createdAt time.Time, expiresAt time.Time) (models.RefreshToken, error)

	// FindMatching scans every record of the user and compares the bearer
	// against each stored hash in constant time.
	// Returns apperrors.ErrRefreshTokenNotFound when nothing matches.
	FindMatching(ctx context.Context, userID uuid.UUID, bearer string) (models.RefreshToken, error)

	// Delete removes one record and reports whether this call removed it.
	// The claim semantics (false when the record is already gone) is what
	// makes concurrent rotation resolve to exactly one winner.
	Delete(ctx context.Context, tokenID uuid.UUID) (deleted bool, err error)

	// DeleteAllForUser removes every record of the user (global logout)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error

	// CountForUser and OldestForUser serve quota enforcement. Ordering is
	// explicit by created_at, oldest first.
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
	OldestForUser(ctx context.Context, userID uuid.UUID) (models.RefreshToken, error)

	// DeleteExpired removes records that expired before the given moment.
	// Store hygiene only: correctness relies on lazy expiry during rotation.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
