package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type adminUserService interface {
	Create(ctx context.Context, email string, password string, isAdmin bool) (models.User, error)
	Update(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error)
	List(ctx context.Context, page int, limit int) ([]models.User, int64, error)
}

type auditQueryService interface {
	List(ctx context.Context, opts repository.ListAuditOpts) ([]models.AuditRecord, int64, error)
}

type AdminHandler struct {
	users  adminUserService
	audit  auditQueryService
	logger logger.Logger
}

func NewAdmin(users adminUserService, audit auditQueryService, l logger.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		audit:  audit,
		logger: l,
	}
}

type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	users, total, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	res := UserListResponse{
		Items: make([]UserResponse, 0, len(users)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, u := range users {
		res.Items = append(res.Items, userResponse(u))
	}

	render.JSON(w, res)
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	type CreateUserRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		IsAdmin  bool   `json:"is_admin"`
	}

	data, err := render.BindAndValidate[CreateUserRequest](w, r)
	if err != nil {
		return
	}

	created, err := h.users.Create(r.Context(), data.Email, data.Password, data.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email already exists", http.StatusConflict)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	render.JSONWithStatus(w, userResponse(created), http.StatusCreated)
}

func (h *AdminHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	type UpdateUserRequest struct {
		IsActive *bool `json:"is_active"`
		IsAdmin  *bool `json:"is_admin"`
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[UpdateUserRequest](w, r)
	if err != nil {
		return
	}

	// An admin may never strip their own admin rights
	caller, ok := userctx.FromContext(r.Context())
	if ok && caller.ID == userID && data.IsAdmin != nil && !*data.IsAdmin {
		render.ServiceError(w, "Cannot remove your own admin privileges", http.StatusForbidden)
		return
	}

	updated, err := h.users.Update(r.Context(), userID, repository.UpdateUserParams{
		IsActive: data.IsActive,
		IsAdmin:  data.IsAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	render.JSON(w, userResponse(updated))
}

type AuditLogResponse struct {
	ID         uuid.UUID  `json:"id"`
	RequestID  string     `json:"request_id"`
	UserID     *uuid.UUID `json:"user_id"`
	UserEmail  *string    `json:"user_email"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	StatusCode int        `json:"status_code"`
	DurationMS int64      `json:"duration_ms"`
	IP         *string    `json:"ip"`
	UserAgent  *string    `json:"user_agent"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AuditLogListResponse struct {
	Items []AuditLogResponse `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func (h *AdminHandler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	opts := repository.ListAuditOpts{
		Offset: (page - 1) * limit,
		Limit:  limit,
	}

	query := r.URL.Query()
	opts.ActorEmail = query.Get("user_email")
	opts.Method = query.Get("method")
	opts.Path = query.Get("path")
	if v := query.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			render.ServiceError(w, "Invalid 'from' date, expected RFC3339", http.StatusBadRequest)
			return
		}
		opts.From = &from
	}
	if v := query.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			render.ServiceError(w, "Invalid 'to' date, expected RFC3339", http.StatusBadRequest)
			return
		}
		opts.To = &to
	}

	records, total, err := h.audit.List(r.Context(), opts)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	res := AuditLogListResponse{
		Items: make([]AuditLogResponse, 0, len(records)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, rec := range records {
		res.Items = append(res.Items, AuditLogResponse{
			ID:         rec.ID,
			RequestID:  rec.RequestID,
			UserID:     rec.UserID,
			UserEmail:  rec.UserEmail,
			Method:     rec.Method,
			Path:       rec.Path,
			StatusCode: rec.StatusCode,
			DurationMS: rec.DurationMS,
			IP:         rec.IP,
			UserAgent:  rec.UserAgent,
			CreatedAt:  rec.CreatedAt,
		})
	}

	render.JSON(w, res)
}

// pageParams reads page/limit query params with the shared defaults.
// Bounds are enforced again at the service level.
func pageParams(r *http.Request) (page int, limit int) {
	page = 1
	limit = 50

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v >= 1 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v >= 1 && v <= 100 {
		limit = v
	}
	return page, limit
}
