package auth

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/repository/postgres"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authgate/internal/testutil"
)

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newService := func(t *testing.T, storage repository.Storage, cfg tokenmanager.Config) *Service {
		if cfg.SecretKey == "" {
			cfg.SecretKey = "test-secret-key"
		}

		tm, err := tokenmanager.New(cfg)
		require.NoError(t, err)

		s, err := NewService(Config{}, tm, storage, nil)
		require.NoError(t, err)
		return s
	}

	withService := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(newService(t, storage, tokenmanager.Config{}), storage)
		})
	}

	t.Run("register and login", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			registered, err := s.Register(t.Context(), "nk@example.com", "long-password")
			require.NoError(t, err)
			assert.Equal(t, "nk@example.com", registered.Email)
			require.NotNil(t, registered.PasswordHash)
			assert.NotContains(t, *registered.PasswordHash, "long-password", "hash must not embed the password")

			user, pair, err := s.Login(t.Context(), "nk@example.com", "long-password")
			require.NoError(t, err)
			assert.Equal(t, registered.ID, user.ID)
			assert.NotEmpty(t, pair.Access.Value)
			assert.NotEmpty(t, pair.Refresh.Value)
		})
	})

	t.Run("register duplicate email fails", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			_, err := s.Register(t.Context(), "dup@example.com", "long-password")
			require.NoError(t, err)

			_, err = s.Register(t.Context(), "dup@example.com", "other-password")
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("login rejections are uniform", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			registered, err := s.Register(t.Context(), "uniform@example.com", "long-password")
			require.NoError(t, err)

			// Passwordless account, created via code or oauth login
			_, err = storage.User().Create(t.Context(), repository.CreateUserParams{Email: "nopass@example.com"})
			require.NoError(t, err)

			// Deactivated account
			_, err = storage.User().Update(t.Context(), registered.ID, repository.UpdateUserParams{IsActive: boolPtr(false)})
			require.NoError(t, err)

			cases := map[string][2]string{
				"unknown email":  {"nobody@example.com", "long-password"},
				"wrong password": {"uniform@example.com", "not-the-password"},
				"passwordless":   {"nopass@example.com", "long-password"},
				"inactive user":  {"uniform@example.com", "long-password"},
			}
			for name, c := range cases {
				_, _, err := s.Login(t.Context(), c[0], c[1])
				assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "case %q must reject like any other", name)
			}
		})
	})

	t.Run("refresh rotates the token", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			registered, err := s.Register(t.Context(), "rotate@example.com", "long-password")
			require.NoError(t, err)

			_, pair, err := s.Login(t.Context(), "rotate@example.com", "long-password")
			require.NoError(t, err)

			user, rotated, err := s.Refresh(t.Context(), pair.Refresh.Value)
			require.NoError(t, err)
			assert.Equal(t, registered.ID, user.ID)
			assert.NotEqual(t, pair.Refresh.Value, rotated.Refresh.Value, "rotation must mint a new token")

			// The old token died with the rotation
			_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)

			// The new one still works
			_, _, err = s.Refresh(t.Context(), rotated.Refresh.Value)
			require.NoError(t, err)
		})
	})

	t.Run("refresh rejects access token", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			_, err := s.Register(t.Context(), "wrongtype@example.com", "long-password")
			require.NoError(t, err)

			_, pair, err := s.Login(t.Context(), "wrongtype@example.com", "long-password")
			require.NoError(t, err)

			_, _, err = s.Refresh(t.Context(), pair.Access.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "access token must not pass as refresh")
		})
	})

	t.Run("refresh rejects expired token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := newService(t, storage, tokenmanager.Config{RefreshTTL: time.Second})

			user, err := s.Register(t.Context(), "expired@example.com", "long-password")
			require.NoError(t, err)

			pair, err := s.IssueSession(t.Context(), user)
			require.NoError(t, err)

			// Backdate the stored row instead of sleeping out the TTL
			_, err = tx.Exec(t.Context(),
				"UPDATE refresh_tokens SET expires_at = now() - interval '1 minute' WHERE token = $1",
				pair.Refresh.Value,
			)
			require.NoError(t, err)

			_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)
		})
	})

	t.Run("refresh rejects inactive user", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			user, err := s.Register(t.Context(), "frozen@example.com", "long-password")
			require.NoError(t, err)

			pair, err := s.IssueSession(t.Context(), user)
			require.NoError(t, err)

			_, err = storage.User().Update(t.Context(), user.ID, repository.UpdateUserParams{IsActive: boolPtr(false)})
			require.NoError(t, err)

			_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)
		})
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			user, err := s.Register(t.Context(), "bye@example.com", "long-password")
			require.NoError(t, err)

			pair, err := s.IssueSession(t.Context(), user)
			require.NoError(t, err)

			require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value))
			require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value), "second logout should pass quietly")

			_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected, "logged out session must not refresh")
		})
	})

	t.Run("revoke all drops every session", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			user, err := s.Register(t.Context(), "everywhere@example.com", "long-password")
			require.NoError(t, err)

			var pairs []models.TokenPair
			for i := 0; i < 3; i++ {
				pair, err := s.IssueSession(t.Context(), user)
				require.NoError(t, err)
				pairs = append(pairs, pair)
			}

			require.NoError(t, s.RevokeAll(t.Context(), user.ID))

			for _, pair := range pairs {
				_, _, err := s.Refresh(t.Context(), pair.Refresh.Value)
				assert.ErrorIs(t, err, apperrors.ErrAuthRejected)
			}
		})
	})

	t.Run("user from access token", func(t *testing.T) {
		withService(t, func(s *Service, storage repository.Storage) {
			user, err := s.Register(t.Context(), "bearer@example.com", "long-password")
			require.NoError(t, err)

			pair, err := s.IssueSession(t.Context(), user)
			require.NoError(t, err)

			resolved, err := s.UserFromAccessToken(t.Context(), pair.Access.Value)
			require.NoError(t, err)
			assert.Equal(t, user.ID, resolved.ID)

			// Refresh token must not pass as access
			_, err = s.UserFromAccessToken(t.Context(), pair.Refresh.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)

			// Deactivation closes the door even with a valid token
			_, err = storage.User().Update(t.Context(), user.ID, repository.UpdateUserParams{IsActive: boolPtr(false)})
			require.NoError(t, err)

			_, err = s.UserFromAccessToken(t.Context(), pair.Access.Value)
			assert.ErrorIs(t, err, apperrors.ErrAuthRejected)
		})
	})
}

func boolPtr(b bool) *bool { return &b }
