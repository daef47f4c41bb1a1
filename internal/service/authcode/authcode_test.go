package authcode

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/repository/postgres"
	"github.com/nkiryanov/authgate/internal/testutil"
)

func Test_AuthCodeService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, cfg Config, fn func(s *Service, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			s, err := NewService(cfg, storage, nil)
			require.NoError(t, err)

			fn(s, storage)
		})
	}

	t.Run("request creates passwordless user", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			code, isNewUser, err := s.RequestCode(t.Context(), "fresh@example.com")

			require.NoError(t, err)
			assert.True(t, isNewUser, "unknown email should be signed up on the fly")
			assert.Len(t, code, defaultCodeLength)

			user, err := storage.User().GetByEmail(t.Context(), "fresh@example.com")
			require.NoError(t, err)
			assert.Nil(t, user.PasswordHash, "code-born account must have no password")
		})
	})

	t.Run("request for known user", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			_, err := storage.User().Create(t.Context(), repository.CreateUserParams{Email: "known@example.com"})
			require.NoError(t, err)

			_, isNewUser, err := s.RequestCode(t.Context(), "known@example.com")

			require.NoError(t, err)
			assert.False(t, isNewUser)
		})
	})

	t.Run("request honors configured length", func(t *testing.T) {
		withService(t, Config{CodeLength: 8}, func(s *Service, storage repository.Storage) {
			code, _, err := s.RequestCode(t.Context(), "long@example.com")

			require.NoError(t, err)
			assert.Len(t, code, 8)
			for _, c := range code {
				assert.Contains(t, "0123456789", string(c), "code must be digits only")
			}
		})
	})

	t.Run("verify consumes the code", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			code, _, err := s.RequestCode(t.Context(), "once@example.com")
			require.NoError(t, err)

			user, err := s.VerifyCode(t.Context(), "once@example.com", code)
			require.NoError(t, err)
			assert.Equal(t, "once@example.com", user.Email)

			_, err = s.VerifyCode(t.Context(), "once@example.com", code)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "code must be single use")
		})
	})

	t.Run("new request invalidates the previous code", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			first, _, err := s.RequestCode(t.Context(), "reissue@example.com")
			require.NoError(t, err)

			second, _, err := s.RequestCode(t.Context(), "reissue@example.com")
			require.NoError(t, err)

			if first != second {
				_, err = s.VerifyCode(t.Context(), "reissue@example.com", first)
				assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "stale code must not verify")
			}

			_, err = s.VerifyCode(t.Context(), "reissue@example.com", second)
			require.NoError(t, err, "latest code must verify")
		})
	})

	t.Run("verify rejections are uniform", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			code, _, err := s.RequestCode(t.Context(), "strict@example.com")
			require.NoError(t, err)

			_, err = s.VerifyCode(t.Context(), "nobody@example.com", code)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "unknown email")

			_, err = s.VerifyCode(t.Context(), "strict@example.com", "000000")
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "wrong code")
		})
	})

	t.Run("expired code rejected and burned", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s, err := NewService(Config{CodeTTL: time.Second}, storage, nil)
			require.NoError(t, err)

			code, _, err := s.RequestCode(t.Context(), "late@example.com")
			require.NoError(t, err)

			user, err := storage.User().GetByEmail(t.Context(), "late@example.com")
			require.NoError(t, err)

			// Backdate the code instead of sleeping out the TTL
			_, err = tx.Exec(t.Context(),
				"UPDATE auth_codes SET expires_at = now() - interval '1 minute' WHERE user_id = $1",
				user.ID,
			)
			require.NoError(t, err)

			_, err = s.VerifyCode(t.Context(), "late@example.com", code)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)

			// Backdating again would not help: the failed attempt consumed it
			_, err = storage.AuthCode().Consume(t.Context(), user.ID, code)
			assert.ErrorIs(t, err, apperrors.ErrAuthCodeNotFound, "expired code must be burned on the failed verify")
		})
	})

	t.Run("inactive user rejected", func(t *testing.T) {
		withService(t, Config{}, func(s *Service, storage repository.Storage) {
			code, _, err := s.RequestCode(t.Context(), "frozen@example.com")
			require.NoError(t, err)

			user, err := storage.User().GetByEmail(t.Context(), "frozen@example.com")
			require.NoError(t, err)

			inactive := false
			_, err = storage.User().Update(t.Context(), user.ID, repository.UpdateUserParams{IsActive: &inactive})
			require.NoError(t, err)

			_, err = s.VerifyCode(t.Context(), "frozen@example.com", code)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)
		})
	})
}
