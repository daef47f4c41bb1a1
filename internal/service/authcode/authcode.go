package authcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

const (
	defaultCodeLength = 6
	defaultCodeTTL    = 10 * time.Minute
)

type Config struct {
	// Number of digits in a code. Defaults to 6
	CodeLength int

	// Code lifetime. Defaults to 10 minutes
	CodeTTL time.Duration
}

// Service implements one-time numeric code login.
// A code is a low-entropy short-lived secret: at most one usable code exists
// per user and verification consumes it.
type Service struct {
	codeLength int
	codeTTL    time.Duration

	storage repository.Storage
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, l logger.Logger) (*Service, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if cfg.CodeLength == 0 {
		cfg.CodeLength = defaultCodeLength
	}
	if cfg.CodeTTL == 0 {
		cfg.CodeTTL = defaultCodeTTL
	}

	return &Service{
		codeLength: cfg.CodeLength,
		codeTTL:    cfg.CodeTTL,
		storage:    storage,
		logger:     l,
	}, nil
}

// RequestCode issues a fresh code for the email, creating a passwordless
// user when the email is unknown. All previously unused codes of the user
// are invalidated in the same transaction, so issuing is all-or-nothing.
// Delivering the code to the user is the caller's concern.
func (s *Service) RequestCode(ctx context.Context, email string) (code string, isNewUser bool, err error) {
	code, err = s.generateCode()
	if err != nil {
		return "", false, fmt.Errorf("error while generating code. Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetByEmail(ctx, email)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			user, err = st.User().Create(ctx, repository.CreateUserParams{Email: email})
			if err != nil {
				return err
			}
			isNewUser = true
		default:
			return err
		}

		if _, err := st.AuthCode().InvalidateUnused(ctx, user.ID); err != nil {
			return err
		}

		now := time.Now().Truncate(time.Second)
		_, err = st.AuthCode().Create(ctx, models.AuthCode{
			ID:        uuid.New(),
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: now.Add(s.codeTTL),
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return "", false, err
	}

	return code, isNewUser, nil
}

// VerifyCode consumes the code and resolves the user.
// Unknown email, no matching unused code, expired code and inactive user all
// reject identically. The consume is a single atomic statement, so two
// concurrent verifications cannot both succeed, and a code that fails only
// on expiry is still burned.
func (s *Service) VerifyCode(ctx context.Context, email string, code string) (models.User, error) {
	user, err := s.storage.User().GetByEmail(ctx, email)
	if err != nil {
		return models.User{}, fmt.Errorf("user lookup: %w", apperrors.ErrAuthRejected)
	}

	consumed, err := s.storage.AuthCode().Consume(ctx, user.ID, code)
	if err != nil {
		return models.User{}, fmt.Errorf("code lookup: %w", apperrors.ErrAuthRejected)
	}
	if consumed.ExpiresAt.Before(time.Now()) {
		return models.User{}, fmt.Errorf("code expired: %w", apperrors.ErrAuthRejected)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("inactive user: %w", apperrors.ErrAuthRejected)
	}

	return user, nil
}

// generateCode returns uniform random digits of the configured length
func (s *Service) generateCode() (string, error) {
	digits := make([]byte, s.codeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
