package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
	UpdatedAt *time.Time

	// PasswordHash is nil for accounts created via one-time code or oauth
	PasswordHash *string

	IsActive bool
	IsAdmin  bool
}
