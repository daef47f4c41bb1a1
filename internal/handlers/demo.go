package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type itemService interface {
	Create(ctx context.Context, ownerID uuid.UUID, title string, description *string) (models.Item, error)
	Get(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID) (models.Item, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	Update(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID, params repository.UpdateItemParams) (models.Item, error)
	Delete(ctx context.Context, callerID uuid.UUID, itemID uuid.UUID) error
}

type DemoHandler struct {
	items  itemService
	logger logger.Logger
}

func NewDemo(items itemService, l logger.Logger) *DemoHandler {
	return &DemoHandler{items: items, logger: l}
}

type ItemResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

func itemResponse(item models.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (h *DemoHandler) list(w http.ResponseWriter, r *http.Request) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.items.ListOwned(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	res := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		res = append(res, itemResponse(item))
	}

	render.JSON(w, res)
}

func (h *DemoHandler) create(w http.ResponseWriter, r *http.Request) {
	type CreateItemRequest struct {
		Title       string  `json:"title" validate:"required,max=200"`
		Description *string `json:"description"`
	}

	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[CreateItemRequest](w, r)
	if err != nil {
		return
	}

	item, err := h.items.Create(r.Context(), u.ID, data.Title, data.Description)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	render.JSONWithStatus(w, itemResponse(item), http.StatusCreated)
}

func (h *DemoHandler) get(w http.ResponseWriter, r *http.Request) {
	u, itemID, ok := h.callerAndItem(w, r)
	if !ok {
		return
	}

	item, err := h.items.Get(r.Context(), u.ID, itemID)
	if err != nil {
		h.renderItemError(w, r, err)
		return
	}

	render.JSON(w, itemResponse(item))
}

func (h *DemoHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateItemRequest struct {
		Title       *string `json:"title" validate:"omitempty,max=200"`
		Description *string `json:"description"`
	}

	u, itemID, ok := h.callerAndItem(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[UpdateItemRequest](w, r)
	if err != nil {
		return
	}

	item, err := h.items.Update(r.Context(), u.ID, itemID, repository.UpdateItemParams{
		Title:       data.Title,
		Description: data.Description,
	})
	if err != nil {
		h.renderItemError(w, r, err)
		return
	}

	render.JSON(w, itemResponse(item))
}

func (h *DemoHandler) delete(w http.ResponseWriter, r *http.Request) {
	u, itemID, ok := h.callerAndItem(w, r)
	if !ok {
		return
	}

	if err := h.items.Delete(r.Context(), u.ID, itemID); err != nil {
		h.renderItemError(w, r, err)
		return
	}

	render.NoContent(w)
}

func (h *DemoHandler) callerAndItem(w http.ResponseWriter, r *http.Request) (models.User, uuid.UUID, bool) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return models.User{}, uuid.Nil, false
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid item id", http.StatusBadRequest)
		return models.User{}, uuid.Nil, false
	}

	return u, itemID, true
}

func (h *DemoHandler) renderItemError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrItemNotFound):
		render.ServiceError(w, "Item not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrPermissionDenied):
		render.ServiceError(w, "Not authorized to access this item", http.StatusForbidden)
	default:
		internalError(w, r, h.logger, err)
	}
}
