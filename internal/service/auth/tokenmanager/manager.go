package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
	"github.com/teampulse/teampulse/internal/repository"
	"github.com/teampulse/teampulse/internal/service/auth/tokencodec"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultMaxActiveTokens = 5
)

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign token payloads
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Cap of live refresh records per user (bounded device count).
	// If not set than default is used
	MaxActiveTokens int
}

// TokenManager drives the refresh token lifecycle: a bearer value is
// ISSUED, then exactly one of CONSUMED (rotated), REVOKED or EXPIRED.
// There is no way back to ISSUED, so replay always fails.
type TokenManager struct {
	codec *tokencodec.Codec

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Per-user live refresh record cap
	maxActive int

	// Refresh token repo
	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	codec, err := tokencodec.New(cfg.SecretKey, cfg.Alg)
	if err != nil {
		return nil, err
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.MaxActiveTokens == 0 {
		cfg.MaxActiveTokens = defaultMaxActiveTokens
	}

	return &TokenManager{
		codec:       codec,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		maxActive:   cfg.MaxActiveTokens,
		refreshRepo: refreshRepo,
	}, nil
}

// IssueSession creates a fresh access/refresh pair for the identity and
// persists the refresh record. When the user already holds maxActive live
// records the oldest ones are evicted first: a bounded session count per
// identity, not an error.
func (m *TokenManager) IssueSession(ctx context.Context, identity models.Identity) (models.TokenPair, error) {
	var pair models.TokenPair

	// JWT date claims are second-granular. The record's created_at keeps
	// full precision so eviction order follows issue order even for
	// sessions started within the same second.
	now := time.Now()
	issuedAt := now.Truncate(time.Second)
	accessExpiresAt := issuedAt.Add(m.accessTTL)
	refreshExpiresAt := issuedAt.Add(m.refreshTTL)

	access, err := m.codec.Issue(identity, tokencodec.KindAccess, issuedAt, accessExpiresAt)
	if err != nil {
		return pair, unavailable("issue access token", err)
	}

	refresh, err := m.codec.Issue(identity, tokencodec.KindRefresh, issuedAt, refreshExpiresAt)
	if err != nil {
		return pair, unavailable("issue refresh token", err)
	}

	if err := m.evictOverQuota(ctx, identity.UserID); err != nil {
		return pair, err
	}

	if _, err := m.refreshRepo.Save(ctx, identity.UserID, refresh, now, refreshExpiresAt); err != nil {
		return pair, unavailable("save refresh token", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

// Rotate exchanges a still-valid refresh bearer for a new pair and
// invalidates the presented one. Each bearer value rotates at most once:
// the matching record is claimed with an atomic delete, and the loser of
// a concurrent race gets ErrInvalidToken.
//
// The new refresh token inherits the old record's expires_at. Rotation
// never extends the absolute session lifetime.
func (m *TokenManager) Rotate(ctx context.Context, bearer string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := m.codec.Verify(bearer, tokencodec.KindRefresh)
	if err != nil {
		return pair, err
	}

	record, err := m.refreshRepo.FindMatching(ctx, claims.UserID, bearer)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		// Never issued, already consumed or revoked. Deliberately
		// indistinguishable from any other invalid token.
		return pair, fmt.Errorf("%w: no matching record", apperrors.ErrInvalidToken)
	case err != nil:
		return pair, unavailable("find refresh token", err)
	}

	if record.ExpiresAt.Before(time.Now()) {
		// Store expiry is authoritative even when the bearer's own exp
		// claim still validates (skewed clocks, records written by other
		// tooling). Lazy cleanup on first verification attempt, no
		// background sweep required for correctness.
		_, _ = m.refreshRepo.Delete(ctx, record.ID)
		return pair, fmt.Errorf("%w: record expired", apperrors.ErrInvalidToken)
	}

	claimed, err := m.refreshRepo.Delete(ctx, record.ID)
	if err != nil {
		return pair, unavailable("claim refresh token", err)
	}
	if !claimed {
		// Lost a concurrent rotation of the same bearer
		return pair, fmt.Errorf("%w: record already claimed", apperrors.ErrInvalidToken)
	}

	identity := models.Identity{UserID: claims.UserID, IsManager: claims.IsManager}
	now := time.Now()
	issuedAt := now.Truncate(time.Second)
	accessExpiresAt := issuedAt.Add(m.accessTTL)

	access, err := m.codec.Issue(identity, tokencodec.KindAccess, issuedAt, accessExpiresAt)
	if err != nil {
		return pair, unavailable("issue access token", err)
	}

	refresh, err := m.codec.Issue(identity, tokencodec.KindRefresh, issuedAt, record.ExpiresAt)
	if err != nil {
		return pair, unavailable("issue refresh token", err)
	}

	if _, err := m.refreshRepo.Save(ctx, claims.UserID, refresh, now, record.ExpiresAt); err != nil {
		return pair, unavailable("save refresh token", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: record.ExpiresAt},
	}, nil
}

// RevokeOne deletes the record matching the bearer if there is one.
// Idempotent: revoking a malformed, expired or already-gone token is not
// an error.
func (m *TokenManager) RevokeOne(ctx context.Context, bearer string) error {
	claims, err := m.codec.Verify(bearer, tokencodec.KindRefresh)
	if err != nil {
		return nil
	}

	record, err := m.refreshRepo.FindMatching(ctx, claims.UserID, bearer)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return nil
	case err != nil:
		return unavailable("find refresh token", err)
	}

	if _, err := m.refreshRepo.Delete(ctx, record.ID); err != nil {
		return unavailable("delete refresh token", err)
	}
	return nil
}

// RevokeAll removes every refresh record of the user ("log out of all
// devices"). Outstanding access tokens stay valid until expiry, the short
// access TTL is the safety mechanism.
func (m *TokenManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := m.refreshRepo.DeleteAllForUser(ctx, userID); err != nil {
		return unavailable("delete refresh tokens", err)
	}
	return nil
}

// Authorize verifies an access bearer. Pure codec check: access tokens
// are stateless, the store is never consulted.
func (m *TokenManager) Authorize(access string) (models.Identity, error) {
	claims, err := m.codec.Verify(access, tokencodec.KindAccess)
	if err != nil {
		return models.Identity{}, err
	}

	return models.Identity{UserID: claims.UserID, IsManager: claims.IsManager}, nil
}

// evictOverQuota drops oldest-by-created_at records until the user is
// below the cap. Best effort under concurrency: a racing insert may leave
// the user briefly at cap+1, which the next issue repairs.
func (m *TokenManager) evictOverQuota(ctx context.Context, userID uuid.UUID) error {
	count, err := m.refreshRepo.CountForUser(ctx, userID)
	if err != nil {
		return unavailable("count refresh tokens", err)
	}

	for count >= m.maxActive {
		oldest, err := m.refreshRepo.OldestForUser(ctx, userID)
		if errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
			break
		}
		if err != nil {
			return unavailable("pick oldest refresh token", err)
		}

		if _, err := m.refreshRepo.Delete(ctx, oldest.ID); err != nil {
			return unavailable("evict refresh token", err)
		}
		count--
	}

	return nil
}

// unavailable marks infrastructure failures so they are never confused
// with a security decision
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrUnavailable, op, err)
}
