package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
)

type AuthCodeRepo struct {
	DB DBTX
}

const createCode = `-- name: CreateAuthCode
INSERT INTO auth_codes (id, user_id, code, expires_at, is_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, code, expires_at, is_used, created_at
`

func (r *AuthCodeRepo) Create(ctx context.Context, code models.AuthCode) (models.AuthCode, error) {
	rows, _ := r.DB.Query(ctx, createCode, code.ID, code.UserID, code.Code, code.ExpiresAt, code.IsUsed, code.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToAuthCode)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const invalidateUnusedCodes = `-- name: InvalidateUnusedAuthCodes
UPDATE auth_codes
SET is_used = TRUE
WHERE user_id = $1 AND is_used = FALSE
`

func (r *AuthCodeRepo) InvalidateUnused(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, invalidateUnusedCodes, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const consumeCode = `-- name: ConsumeAuthCode
UPDATE auth_codes
SET is_used = TRUE
WHERE user_id = $1 AND code = $2 AND is_used = FALSE
RETURNING id, user_id, code, expires_at, is_used, created_at
`

// Consume marks the matching unused code as used and returns it.
// The check and the flip happen in one statement, so two concurrent
// verifications cannot both succeed on the same code.
func (r *AuthCodeRepo) Consume(ctx context.Context, userID uuid.UUID, code string) (models.AuthCode, error) {
	rows, _ := r.DB.Query(ctx, consumeCode, userID, code)
	consumed, err := pgx.CollectOneRow(rows, rowToAuthCode)

	switch {
	case err == nil:
		return consumed, nil
	case errors.Is(err, pgx.ErrNoRows):
		return consumed, fmt.Errorf("repo error: %w", apperrors.ErrAuthCodeNotFound)
	default:
		return consumed, fmt.Errorf("db error: %w", err)
	}
}

const deleteCodesByUser = `-- name: DeleteAuthCodesByUser
DELETE FROM auth_codes
WHERE user_id = $1
`

func (r *AuthCodeRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteCodesByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToAuthCode(row pgx.CollectableRow) (models.AuthCode, error) {
	var c models.AuthCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.IsUsed, &c.CreatedAt)
	return c, err
}
