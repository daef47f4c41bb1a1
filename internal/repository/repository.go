package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/models"
)

type CreateUserParams struct {
	Email        string
	PasswordHash *string // nil for passwordless (code or oauth) accounts
	IsAdmin      bool
}

type UpdateUserParams struct {
	// nil means "leave unchanged"
	IsActive *bool
	IsAdmin  *bool
}

type ListUsersOpts struct {
	Offset int
	Limit  int
}

// User repository interface
type UserRepo interface {
	// Create user
	// Must return apperrors.ErrUserAlreadyExists if email is taken
	Create(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id or email (exact, case-sensitive match)
	// Must return apperrors.ErrUserNotFound if user not found
	GetByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)

	// Update active/admin flags, sets updated_at
	// Must return apperrors.ErrUserNotFound if user not found
	Update(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (models.User, error)

	// List users ordered by created_at descending with total count
	List(ctx context.Context, opts ListUsersOpts) ([]models.User, int64, error)

	// Delete user row. Returns apperrors.ErrUserNotFound if nothing deleted
	Delete(ctx context.Context, userID uuid.UUID) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token
	// Must return apperrors.ErrRefreshTokenExists on token string collision
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token if it exists, expired or not
	// Must return apperrors.ErrRefreshTokenNotFound otherwise
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Delete token. Idempotent: deleting an absent token is not an error
	Delete(ctx context.Context, tokenString string) error

	// Delete every token owned by user, returns number of deleted rows
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// AuthCode repository interface
type AuthCodeRepo interface {
	Create(ctx context.Context, code models.AuthCode) (models.AuthCode, error)

	// Mark all unused codes of the user as used, returns affected count
	InvalidateUnused(ctx context.Context, userID uuid.UUID) (int64, error)

	// Atomically mark the matching unused code as used and return it.
	// Expiry is NOT checked here: a consumed-but-expired code must still be
	// burned. Must return apperrors.ErrAuthCodeNotFound when no unused code
	// matches.
	Consume(ctx context.Context, userID uuid.UUID, code string) (models.AuthCode, error)

	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListAuditOpts struct {
	// Filters combine with AND. Zero values mean "no filter".
	ActorEmail string // case-insensitive substring match on joined user email
	Method     string // exact match
	Path       string // case-insensitive substring match
	From       *time.Time
	To         *time.Time

	Offset int
	Limit  int
}

// AuditLog repository interface. Records are append-only: no update or
// delete operations exist, only actor anonymization.
type AuditLogRepo interface {
	Create(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error)

	// List filtered records ordered by created_at descending.
	// Total reflects the filtered count independent of pagination.
	List(ctx context.Context, opts ListAuditOpts) ([]models.AuditRecord, int64, error)

	// Most recent records of one user, for data export
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditRecord, error)

	// Null the user reference on all records of the user, keep the records
	AnonymizeUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type UpdateItemParams struct {
	Title       *string
	Description *string
}

// Item repository interface
type ItemRepo interface {
	Create(ctx context.Context, item models.Item) (models.Item, error)

	// Must return apperrors.ErrItemNotFound if item not found
	GetByID(ctx context.Context, itemID uuid.UUID) (models.Item, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error)

	// Must return apperrors.ErrItemNotFound if item not found
	Update(ctx context.Context, itemID uuid.UUID, params UpdateItemParams) (models.Item, error)
	Delete(ctx context.Context, itemID uuid.UUID) error

	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Storage bundles every repository over one database handle.
// InTx runs fn with a Storage bound to a single transaction: all-or-nothing
// semantics for multi-step mutations like erasure cascades or code rotation.
type Storage interface {
	User() UserRepo
	RefreshToken() RefreshTokenRepo
	AuthCode() AuthCodeRepo
	Audit() AuditLogRepo
	Item() ItemRepo

	InTx(ctx context.Context, fn func(s Storage) error) error
}
