package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// ErrInvalidToken covers every verification failure: bad signature,
	// expiry, wrong kind, structural corruption, or a missing store record.
	// Callers must not be able to tell these apart.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnavailable marks infrastructure failures (store or codec backend).
	// Must never be collapsed into ErrInvalidToken: a transient outage is
	// not a security decision.
	ErrUnavailable = errors.New("token backend unavailable")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
