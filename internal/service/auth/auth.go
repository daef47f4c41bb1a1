package auth

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
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
)

type Config struct {
	// Hasher to use during registration or login
	// Defaults to bcrypt if not set
	Hasher PasswordHasher
}

// Service owns the session lifecycle: password verification, token pair
// issuance, refresh token rotation and revocation.
type Service struct {
	token   *tokenmanager.TokenManager
	hasher  PasswordHasher
	storage repository.Storage
	logger  logger.Logger
}

func NewService(cfg Config, token *tokenmanager.TokenManager, storage repository.Storage, l logger.Logger) (*Service, error) {
	if token == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &Service{
		token:   token,
		hasher:  hasher,
		storage: storage,
		logger:  l,
	}, nil
}

// Register creates a password-backed user.
// Returns apperrors.ErrUserAlreadyExists if the email is taken.
func (s *Service) Register(ctx context.Context, email string, password string) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err = s.storage.User().Create(ctx, repository.CreateUserParams{
		Email:        email,
		PasswordHash: &hash,
	})
	if err != nil {
		return user, err
	}

	return user, nil
}

// bcrypt hash of an arbitrary string, compared against when the user does
// not exist so both branches cost one full comparison
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Authenticate verifies email and password.
// Unknown email, passwordless account, hash mismatch and inactive user all
// yield the same apperrors.ErrAuthRejected.
func (s *Service) Authenticate(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.storage.User().GetByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway so unknown emails cost the same as known ones
		_ = s.hasher.Compare(dummyHash, password)
		return models.User{}, fmt.Errorf("user lookup: %w", apperrors.ErrAuthRejected)
	}

	if user.PasswordHash == nil {
		return models.User{}, fmt.Errorf("passwordless account: %w", apperrors.ErrAuthRejected)
	}
	if err := s.hasher.Compare(*user.PasswordHash, password); err != nil {
		return models.User{}, fmt.Errorf("password mismatch: %w", apperrors.ErrAuthRejected)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("inactive user: %w", apperrors.ErrAuthRejected)
	}

	return user, nil
}

// Login authenticates and opens a session
func (s *Service) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return user, models.TokenPair{}, err
	}

	pair, err := s.IssueSession(ctx, user)
	if err != nil {
		return user, pair, err
	}

	return user, pair, nil
}

// IssueSession mints an access/refresh pair and persists the refresh token
func (s *Service) IssueSession(ctx context.Context, user models.User) (models.TokenPair, error) {
	return s.issueSession(ctx, s.storage, user)
}

func (s *Service) issueSession(ctx context.Context, st repository.Storage, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := s.token.Issue(user.ID, tokenmanager.TypeAccess)
	if err != nil {
		return pair, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	refresh, err := s.token.Issue(user.ID, tokenmanager.TypeRefresh)
	if err != nil {
		return pair, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	_, err = st.RefreshToken().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh.Value,
		CreatedAt: time.Now().Truncate(time.Second),
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		// Collision on the random jti is practically impossible but must
		// surface as an error, not get swallowed
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh rotates the presented refresh token: the old one is deleted and a
// fresh pair is issued in the same transaction. Missing, expired, wrong-type
// and orphaned tokens are all rejected the same way.
func (s *Service) Refresh(ctx context.Context, refreshString string) (models.User, models.TokenPair, error) {
	var user models.User
	var pair models.TokenPair

	// Signature and type check before touching the store
	if _, err := s.token.Parse(refreshString, tokenmanager.TypeRefresh); err != nil {
		return user, pair, err
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		stored, err := st.RefreshToken().Get(ctx, refreshString)
		if err != nil {
			return fmt.Errorf("refresh token lookup: %w", apperrors.ErrAuthRejected)
		}
		if stored.ExpiresAt.Before(time.Now()) {
			return fmt.Errorf("refresh token expired: %w", apperrors.ErrAuthRejected)
		}

		user, err = st.User().GetByID(ctx, stored.UserID)
		if err != nil {
			return fmt.Errorf("refresh token owner lookup: %w", apperrors.ErrAuthRejected)
		}
		if !user.IsActive {
			return fmt.Errorf("inactive user: %w", apperrors.ErrAuthRejected)
		}

		if err := st.RefreshToken().Delete(ctx, refreshString); err != nil {
			return err
		}

		pair, err = s.issueSession(ctx, st, user)
		return err
	})
	if err != nil {
		return user, pair, err
	}

	return user, pair, nil
}

// Logout revokes the refresh token. Idempotent: an unknown token is fine
func (s *Service) Logout(ctx context.Context, refreshString string) error {
	return s.storage.RefreshToken().Delete(ctx, refreshString)
}

// RevokeAll drops every session of the user (logout-everywhere, erasure)
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	n, err := s.storage.RefreshToken().DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Debug("revoked all user sessions", "user_id", userID, "count", n)
	return nil
}

// UserFromAccessToken resolves the bearer access token to an active user.
// Used by the auth middleware on every protected route.
func (s *Service) UserFromAccessToken(ctx context.Context, accessString string) (models.User, error) {
	userID, err := s.token.Parse(accessString, tokenmanager.TypeAccess)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.storage.User().GetByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("access token owner lookup: %w", apperrors.ErrAuthRejected)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("inactive user: %w", apperrors.ErrAuthRejected)
	}

	return user, nil
}

// AccessTTL exposes the configured access token lifetime for response bodies
func (s *Service) AccessTTL() time.Duration { return s.token.AccessTTL() }

// RefreshTTL exposes the refresh lifetime for cookie max-age
func (s *Service) RefreshTTL() time.Duration { return s.token.RefreshTTL() }
