package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted half of a session. The token string itself is
// the signed refresh JWT, but the store treats it as an opaque unique string.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued by AuthService on every successful authentication
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
