package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
	"github.com/teampulse/teampulse/internal/repository/tokenhash"
)

type RefreshTokenRepo struct {
	db DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token_hash, salt, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

func (r *RefreshTokenRepo) Save(ctx context.Context, userID uuid.UUID, bearer string, createdAt time.Time, expiresAt time.Time) (models.RefreshToken, error) {
	salt, err := tokenhash.NewSalt()
	if err != nil {
		return models.RefreshToken{}, err
	}

	token := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenhash.Sum(salt, bearer),
		Salt:      salt,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	rows, _ := r.db.Query(ctx, saveToken, token.ID, token.UserID, token.TokenHash, token.Salt, token.CreatedAt, token.ExpiresAt)
	_, err = pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("db error: %w", err)
	}

	return token, nil
}

const listTokensForUser = `-- name: ListRefreshTokensForUser
SELECT id, user_id, token_hash, salt, created_at, expires_at
FROM refresh_tokens
WHERE user_id = $1
ORDER BY created_at
`

// FindMatching compares the bearer against every stored hash of the user.
// The plaintext is never stored, so there is no lookup-by-token index to
// use: all candidates are checked in constant time and the loop never
// exits early.
func (r *RefreshTokenRepo) FindMatching(ctx context.Context, userID uuid.UUID, bearer string) (models.RefreshToken, error) {
	rows, _ := r.db.Query(ctx, listTokensForUser, userID)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("db error: %w", err)
	}

	var match models.RefreshToken
	found := false
	for _, t := range tokens {
		if tokenhash.Match(t.Salt, t.TokenHash, bearer) && !found {
			match = t
			found = true
		}
	}

	if !found {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}
	return match, nil
}

const deleteToken = `-- name: DeleteRefreshToken
DELETE FROM refresh_tokens
WHERE id = $1
`

// Delete claims the record: under concurrent rotation exactly one caller
// observes deleted=true, the rest see the row already gone.
func (r *RefreshTokenRepo) Delete(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, deleteToken, tokenID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const deleteTokensForUser = `-- name: DeleteRefreshTokensForUser
DELETE FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, deleteTokensForUser, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const countTokensForUser = `-- name: CountRefreshTokensForUser
SELECT count(*) FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, countTokensForUser, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

const oldestTokenForUser = `-- name: OldestRefreshTokenForUser
SELECT id, user_id, token_hash, salt, created_at, expires_at
FROM refresh_tokens
WHERE user_id = $1
ORDER BY created_at
LIMIT 1
`

func (r *RefreshTokenRepo) OldestForUser(ctx context.Context, userID uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.db.Query(ctx, oldestTokenForUser, userID)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredTokens = `-- name: DeleteExpiredRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1
`

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Salt, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
