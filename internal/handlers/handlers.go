package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

const refreshCookieName = "refresh_token"

// Features tells which authentication methods are enabled.
// A disabled method answers 400 on every endpoint of that method.
type Features struct {
	Password bool
	Code     bool
	OAuth    bool
}

// TokenResponse carries the issued access token. The refresh token travels
// only in the cookie, never in the body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func tokenResponse(pair models.TokenPair, accessTTL time.Duration) TokenResponse {
	return TokenResponse{
		AccessToken: pair.Access.Value,
		TokenType:   "bearer",
		ExpiresIn:   int64(accessTTL.Seconds()),
	}
}

func setRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// internalError logs the unexpected failure and answers the uniform 500
// carrying only the correlation id
func internalError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	requestID := userctx.RequestID(r.Context())
	l.Error("request failed", "error", err, "method", r.Method, "uri", r.RequestURI, "request_id", requestID)
	render.InternalError(w, requestID)
}
