package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type ItemRepo struct {
	DB DBTX
}

const createItem = `-- name: CreateItem
INSERT INTO demo_items (id, user_id, title, description)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, title, description, created_at, updated_at
`

func (r *ItemRepo) Create(ctx context.Context, item models.Item) (models.Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createItem, item.ID, item.UserID, item.Title, item.Description)
	created, err := pgx.CollectOneRow(rows, rowToItem)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getItemByID = `-- name: GetItemByID
SELECT id, user_id, title, description, created_at, updated_at
FROM demo_items
WHERE id = $1
`

func (r *ItemRepo) GetByID(ctx context.Context, itemID uuid.UUID) (models.Item, error) {
	rows, _ := r.DB.Query(ctx, getItemByID, itemID)
	item, err := pgx.CollectOneRow(rows, rowToItem)

	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return item, fmt.Errorf("repo error: %w", apperrors.ErrItemNotFound)
	default:
		return item, fmt.Errorf("db error: %w", err)
	}
}

const listItemsByUser = `-- name: ListItemsByUser
SELECT id, user_id, title, description, created_at, updated_at
FROM demo_items
WHERE user_id = $1
ORDER BY created_at DESC
`

func (r *ItemRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error) {
	rows, _ := r.DB.Query(ctx, listItemsByUser, userID)
	items, err := pgx.CollectRows(rows, rowToItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

const updateItem = `-- name: UpdateItem
UPDATE demo_items
SET title       = COALESCE($2, title),
    description = COALESCE($3, description),
    updated_at  = now()
WHERE id = $1
RETURNING id, user_id, title, description, created_at, updated_at
`

func (r *ItemRepo) Update(ctx context.Context, itemID uuid.UUID, params repository.UpdateItemParams) (models.Item, error) {
	rows, _ := r.DB.Query(ctx, updateItem, itemID, params.Title, params.Description)
	item, err := pgx.CollectOneRow(rows, rowToItem)

	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return item, fmt.Errorf("repo error: %w", apperrors.ErrItemNotFound)
	default:
		return item, fmt.Errorf("db error: %w", err)
	}
}

const deleteItem = `-- name: DeleteItem
DELETE FROM demo_items
WHERE id = $1
`

func (r *ItemRepo) Delete(ctx context.Context, itemID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteItem, itemID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrItemNotFound)
	}
	return nil
}

const deleteItemsByUser = `-- name: DeleteItemsByUser
DELETE FROM demo_items
WHERE user_id = $1
`

func (r *ItemRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteItemsByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToItem(row pgx.CollectableRow) (models.Item, error) {
	var i models.Item
	err := row.Scan(&i.ID, &i.UserID, &i.Title, &i.Description, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
