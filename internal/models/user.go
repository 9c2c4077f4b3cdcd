package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	FullName       string
	HashedPassword string
	IsManager      bool
	IsActive       bool
}

// Identity is what an access token proves: the subject and its role flag.
// It carries no storage-backed state, so it may be attached to a request
// context without any repository round trip.
type Identity struct {
	UserID    uuid.UUID
	IsManager bool
}
