package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthCode is a short numeric one-time login code.
// At most one usable code exists per user: issuing a new one marks all
// previous unused codes as used.
type AuthCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Code      string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}
