package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is a user-owned demo resource. It exists so account erasure and data
// export have real owned rows to cascade over.
type Item struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
