package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/service/oauth"
)

type oauthService interface {
	AuthorizeURL(ctx context.Context, provider string) (string, error)
	VerifyState(ctx context.Context, state string) (bool, error)
	Exchange(ctx context.Context, provider string, code string) (oauth.TokenResponse, error)
	FetchEmail(ctx context.Context, provider string, accessToken string) (string, error)
	Provider() string
}

func (h *AuthHandler) oauthAuthorize(w http.ResponseWriter, r *http.Request) {
	type AuthorizeResponse struct {
		AuthorizeURL string `json:"authorize_url"`
	}

	if !h.features.OAuth {
		render.ServiceError(w, "OAuth authentication is disabled", http.StatusBadRequest)
		return
	}

	provider := r.PathValue("provider")

	authorizeURL, err := h.oauth.AuthorizeURL(r.Context(), provider)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnknownProvider):
			render.ServiceError(w, "Unknown OAuth provider: "+provider, http.StatusBadRequest)
		default:
			internalError(w, r, h.logger, err)
		}
		return
	}

	render.JSON(w, AuthorizeResponse{AuthorizeURL: authorizeURL})
}

func (h *AuthHandler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	type CallbackRequest struct {
		Code  string `json:"code" validate:"required"`
		State string `json:"state" validate:"required"`
	}

	if !h.features.OAuth {
		render.ServiceError(w, "OAuth authentication is disabled", http.StatusBadRequest)
		return
	}

	provider := r.PathValue("provider")
	if provider != h.oauth.Provider() {
		render.ServiceError(w, "Unknown OAuth provider: "+provider, http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[CallbackRequest](w, r)
	if err != nil {
		return
	}

	ok, err := h.oauth.VerifyState(r.Context(), data.State)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}
	if !ok {
		render.ServiceError(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	tokens, err := h.oauth.Exchange(r.Context(), provider, data.Code)
	if err != nil {
		h.renderOAuthError(w, r, err, "Failed to exchange code for tokens")
		return
	}

	email, err := h.oauth.FetchEmail(r.Context(), provider, tokens.AccessToken)
	if err != nil {
		h.renderOAuthError(w, r, err, "Failed to get user info")
		return
	}

	u, err := h.users.GetOrCreateOAuth(r.Context(), email)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}
	if !u.IsActive {
		render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	pair, err := h.auth.IssueSession(r.Context(), u)
	if err != nil {
		internalError(w, r, h.logger, err)
		return
	}

	setRefreshCookie(w, pair.Refresh.Value, h.auth.RefreshTTL(), !h.debug)
	render.JSON(w, tokenResponse(pair, h.auth.AccessTTL()))
}

// renderOAuthError maps provider failures to generic 400 answers: the
// detailed upstream error stays in the logs only
func (h *AuthHandler) renderOAuthError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, apperrors.ErrUpstreamRejected):
		render.ServiceError(w, message, http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrProviderEmailMissing):
		render.ServiceError(w, "Provider profile has no email", http.StatusBadRequest)
	default:
		internalError(w, r, h.logger, err)
	}
}
