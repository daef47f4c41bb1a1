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
	"github.com/nkiryanov/authgate/internal/service/user"
)

type authService interface {
	Register(ctx context.Context, email string, password string) (models.User, error)
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)
	IssueSession(ctx context.Context, u models.User) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshString string) (models.User, models.TokenPair, error)
	Logout(ctx context.Context, refreshString string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type userDirectory interface {
	GetOrCreateOAuth(ctx context.Context, email string) (models.User, error)
	Erase(ctx context.Context, userID uuid.UUID) error
	ExportData(ctx context.Context, userID uuid.UUID) (user.Export, error)
}

type AuthHandler struct {
	auth     authService
	users    userDirectory
	features Features
	oauth    oauthService

	// debug surfaces issued codes in responses and drops the Secure cookie
	// flag. Never enable in production.
	debug  bool
	logger logger.Logger
}

func NewAuth(auth authService, users userDirectory, oauth oauthService, features Features, debug bool, l logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		users:    users,
		oauth:    oauth,
		features: features,
		debug:    debug,
		logger:   l,
	}
}

func (h *AuthHandler) methods(w http.ResponseWriter, r *http.Request) {
	type MethodsResponse struct {
		Methods        []string `json:"methods"`
		OAuthProviders []string `json:"oauth_providers,omitempty"`
	}

	res := MethodsResponse{Methods: []string{}}
	if h.features.Password {
		res.Methods = append(res.Methods, "email")
	}
	if h.features.Code {
		res.Methods = append(res.Methods, "code")
	}
	if h.features.OAuth {
		res.Methods = append(res.Methods, "oauth")
		res.OAuthProviders = []string{h.oauth.Provider()}
	}

	render.JSON(w, res)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	if !h.features.Password {
		render.ServiceError(w, "Email authentication is disabled", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	registered, err := h.auth.Register(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email already exists", http.StatusConflict)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	render.JSONWithStatus(w, userResponse(registered), http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if !h.features.Password {
		render.ServiceError(w, "Email authentication is disabled", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	_, pair, err := h.auth.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAuthRejected):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	setRefreshCookie(w, pair.Refresh.Value, h.auth.RefreshTTL(), !h.debug)
	render.JSON(w, tokenResponse(pair, h.auth.AccessTTL()))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	if refresh, ok := refreshFromCookie(r); ok {
		if err := h.auth.Logout(r.Context(), refresh); err != nil {
			internalError(w, r, h.logger, err)
			return
		}
	}

	clearRefreshCookie(w, !h.debug)
	render.JSON(w, LogoutResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := refreshFromCookie(r)
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	_, pair, err := h.auth.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAuthRejected):
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	setRefreshCookie(w, pair.Refresh.Value, h.auth.RefreshTTL(), !h.debug)
	render.JSON(w, tokenResponse(pair, h.auth.AccessTTL()))
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, userResponse(u))
}

func (h *AuthHandler) deleteMe(w http.ResponseWriter, r *http.Request) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.users.Erase(r.Context(), u.ID); err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	clearRefreshCookie(w, !h.debug)
	render.NoContent(w)
}

func (h *AuthHandler) exportMe(w http.ResponseWriter, r *http.Request) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	export, err := h.users.ExportData(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	render.JSON(w, export)
}
