package tokencodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
)

const defaultSigningMethod = "HS256"

// Kind discriminates access tokens from refresh tokens so one can never
// be presented in place of the other
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	IsManager bool      `json:"is_manager"`
	Kind      Kind      `json:"kind"`
}

// Codec signs and verifies claim sets with a symmetric key. The key is an
// injected dependency, not process-global state, so tests run with fixture
// secrets.
type Codec struct {
	// Secret key to sign token payloads
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod
}

func New(secretKey string, alg string) (*Codec, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if alg == "" {
		alg = defaultSigningMethod
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("unknown signing method %q", alg)
	}

	return &Codec{key: secretKey, alg: method}, nil
}

// Issue signs a claim set for the identity. Every token carries a fresh
// jti, so two otherwise identical reissues are distinct bearer values.
func (c *Codec) Issue(identity models.Identity, kind Kind, issuedAt time.Time, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(
		c.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(issuedAt),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    identity.UserID,
			IsManager: identity.IsManager,
			Kind:      kind,
		},
	)

	signed, err := token.SignedString([]byte(c.key))
	if err != nil {
		return "", fmt.Errorf("error while signing token. Err: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and kind. Every failure collapses into
// apperrors.ErrInvalidToken: the caller must not be able to distinguish
// expired from forged from wrong-kind. The specific cause stays in the
// error text for debug logging only.
func (c *Codec) Verify(tokenString string, expected Kind) (Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(c.key), nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if claims.Kind != expected {
		return Claims{}, fmt.Errorf("%w: kind mismatch", apperrors.ErrInvalidToken)
	}

	return *claims, nil
}
