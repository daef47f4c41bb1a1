package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/service/auth"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100

	// Most-recent audit window included in a data export
	exportAuditLimit = 1000
)

// Service is the identity directory: create, lookup, update, erase and
// export of user records.
type Service struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
	logger  logger.Logger
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, l logger.Logger) *Service {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		hasher:  hasher,
		storage: storage,
		logger:  l,
	}
}

// Create registers a password-backed user, optionally with admin rights.
// Returns apperrors.ErrUserAlreadyExists if the email is taken.
func (s *Service) Create(ctx context.Context, email string, password string, isAdmin bool) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	return s.storage.User().Create(ctx, repository.CreateUserParams{
		Email:        email,
		PasswordHash: &hash,
		IsAdmin:      isAdmin,
	})
}

// CreateOAuth registers a passwordless user for an oauth-established identity
func (s *Service) CreateOAuth(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().Create(ctx, repository.CreateUserParams{Email: email})
}

// GetOrCreateOAuth resolves the provider-confirmed email to a user,
// registering one on first login
func (s *Service) GetOrCreateOAuth(ctx context.Context, email string) (models.User, error) {
	user, err := s.storage.User().GetByEmail(ctx, email)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return s.CreateOAuth(ctx, email)
	default:
		return user, err
	}
}

func (s *Service) GetByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetByID(ctx, userID)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetByEmail(ctx, email)
}

// Update changes active/admin flags. Nil params leave the flag unchanged
func (s *Service) Update(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
	return s.storage.User().Update(ctx, userID, params)
}

// List returns a page of users, newest first, and the total count.
// Limit is clamped to the configured maximum.
func (s *Service) List(ctx context.Context, page int, limit int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return s.storage.User().List(ctx, repository.ListUsersOpts{
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
}

// Erase removes the user and all owned data in one transaction.
// Audit records are anonymized, not deleted: the trail survives with a null
// actor while sessions, codes and items are hard-deleted.
func (s *Service) Erase(ctx context.Context, userID uuid.UUID) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Audit().AnonymizeUser(ctx, userID); err != nil {
			return err
		}
		if _, err := st.AuthCode().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if _, err := st.Item().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if _, err := st.RefreshToken().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return st.User().Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("user erased", "user_id", userID)
	return nil
}

// Export is the portable snapshot of everything the user owns
type Export struct {
	User       ExportUser        `json:"user"`
	Items      []ExportItem      `json:"items"`
	AuditTrail []ExportAuditRow  `json:"activity_logs"`
	ExportedAt time.Time         `json:"exported_at"`
}

type ExportUser struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type ExportItem struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type ExportAuditRow struct {
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExportData assembles the user's attributes, owned items and the most
// recent window of the audit trail into one document
func (s *Service) ExportData(ctx context.Context, userID uuid.UUID) (Export, error) {
	var export Export

	user, err := s.storage.User().GetByID(ctx, userID)
	if err != nil {
		return export, err
	}

	items, err := s.storage.Item().ListByUser(ctx, userID)
	if err != nil {
		return export, err
	}

	records, err := s.storage.Audit().ListByUser(ctx, userID, exportAuditLimit)
	if err != nil {
		return export, err
	}

	export = Export{
		User: ExportUser{
			ID:        user.ID,
			Email:     user.Email,
			IsActive:  user.IsActive,
			IsAdmin:   user.IsAdmin,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		Items:      make([]ExportItem, 0, len(items)),
		AuditTrail: make([]ExportAuditRow, 0, len(records)),
		ExportedAt: time.Now().UTC(),
	}

	for _, item := range items {
		export.Items = append(export.Items, ExportItem{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	for _, rec := range records {
		export.AuditTrail = append(export.AuditTrail, ExportAuditRow{
			Method:     rec.Method,
			Path:       rec.Path,
			StatusCode: rec.StatusCode,
			CreatedAt:  rec.CreatedAt,
		})
	}

	return export, nil
}

// EnsureAdmin creates the bootstrap admin or promotes an existing user.
// Used once at startup when initial admin credentials are configured.
func (s *Service) EnsureAdmin(ctx context.Context, email string, password string) (models.User, error) {
	existing, err := s.storage.User().GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return existing, nil
		}
		isAdmin := true
		return s.storage.User().Update(ctx, existing.ID, repository.UpdateUserParams{IsAdmin: &isAdmin})
	case errors.Is(err, apperrors.ErrUserNotFound):
		return s.Create(ctx, email, password, true)
	default:
		return existing, err
	}
}
