package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one immutable row per handled request.
// UserID is nulled when the owning user is erased, the record itself stays.
type AuditRecord struct {
	ID         uuid.UUID
	RequestID  string
	UserID     *uuid.UUID
	UserEmail  *string // joined from users on queries, nil for anonymous rows
	Method     string
	Path       string
	StatusCode int
	DurationMS int64
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
}
