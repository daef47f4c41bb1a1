package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (email, password_hash, is_admin)
VALUES ($1, $2, $3)
RETURNING id, email, password_hash, is_active, is_admin, created_at, updated_at
`

func (r *UserRepo) Create(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, params.Email, params.PasswordHash, params.IsAdmin)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return user, fmt.Errorf("repo error: %w", apperrors.ErrUserAlreadyExists)
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, email, password_hash, is_active, is_admin, created_at, updated_at
FROM users
WHERE id = $1
`

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT id, email, password_hash, is_active, is_admin, created_at, updated_at
FROM users
WHERE email = $1
`

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const updateUser = `-- name: UpdateUser
UPDATE users
SET is_active  = COALESCE($2, is_active),
    is_admin   = COALESCE($3, is_admin),
    updated_at = now()
WHERE id = $1
RETURNING id, email, password_hash, is_active, is_admin, created_at, updated_at
`

func (r *UserRepo) Update(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateUser, userID, params.IsActive, params.IsAdmin)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const countUsers = `-- name: CountUsers
SELECT count(*) FROM users
`

const listUsers = `-- name: ListUsers
SELECT id, email, password_hash, is_active, is_admin, created_at, updated_at
FROM users
ORDER BY created_at DESC
OFFSET $1 LIMIT $2
`

func (r *UserRepo) List(ctx context.Context, opts repository.ListUsersOpts) ([]models.User, int64, error) {
	rows, _ := r.DB.Query(ctx, countUsers)
	total, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ = r.DB.Query(ctx, listUsers, opts.Offset, opts.Limit)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return users, total, nil
}

const deleteUser = `-- name: DeleteUser
DELETE FROM users
WHERE id = $1
`

func (r *UserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteUser, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	return nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
