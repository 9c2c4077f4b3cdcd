package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record of an outstanding refresh token.
// The bearer value itself is never stored: TokenHash is a salted one-way
// hash of it, so a leaked store does not yield usable credentials.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash []byte
	Salt      []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued by TokenManager on login or rotation
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
