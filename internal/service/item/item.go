package item

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

// Service manages user-owned items. Every mutation checks ownership, so a
// caller can never touch another user's item.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title string, description *string) (models.Item, error) {
	return s.storage.Item().Create(ctx, models.Item{
		UserID:      ownerID,
		Title:       title,
		Description: description,
	})
}

// Get returns the item if it belongs to the caller.
// An existing item of another user is apperrors.ErrPermissionDenied, a
// missing one is apperrors.ErrItemNotFound.
func (s *Service) Get(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID) (models.Item, error) {
	item, err := s.storage.Item().GetByID(ctx, itemID)
	if err != nil {
		return item, err
	}
	if item.UserID != callerID {
		return models.Item{}, apperrors.ErrPermissionDenied
	}
	return item, nil
}

func (s *Service) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	return s.storage.Item().ListByUser(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID, params repository.UpdateItemParams) (models.Item, error) {
	if _, err := s.Get(ctx, callerID, itemID); err != nil {
		return models.Item{}, err
	}
	return s.storage.Item().Update(ctx, itemID, params)
}

func (s *Service) Delete(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID) error {
	if _, err := s.Get(ctx, callerID, itemID); err != nil {
		return err
	}
	return s.storage.Item().Delete(ctx, itemID)
}
