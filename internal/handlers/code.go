package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/models"
)

type codeService interface {
	RequestCode(ctx context.Context, email string) (code string, isNewUser bool, err error)
	VerifyCode(ctx context.Context, email string, code string) (models.User, error)
}

func (h *AuthHandler) codeRequest(codes codeService) http.HandlerFunc {
	type CodeRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
	type CodeRequestResponse struct {
		Message string `json:"message"`

		// Filled only in debug: stands in for the email delivery channel
		DebugCode *string `json:"debug_code,omitempty"`
		IsNewUser *bool   `json:"is_new_user,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !h.features.Code {
			render.ServiceError(w, "Code authentication is disabled", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[CodeRequest](w, r)
		if err != nil {
			return
		}

		code, isNewUser, err := codes.RequestCode(r.Context(), data.Email)
		if err != nil {
			internalError(w, r, h.logger, err)
			return
		}

		res := CodeRequestResponse{Message: "Code sent successfully"}
		if h.debug {
			res.DebugCode = &code
			res.IsNewUser = &isNewUser
		}

		render.JSON(w, res)
	}
}

func (h *AuthHandler) codeVerify(codes codeService) http.HandlerFunc {
	type CodeVerifyRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !h.features.Code {
			render.ServiceError(w, "Code authentication is disabled", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[CodeVerifyRequest](w, r)
		if err != nil {
			return
		}

		u, err := codes.VerifyCode(r.Context(), data.Email, data.Code)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAuthRejected):
				render.ServiceError(w, "Invalid or expired code", http.StatusUnauthorized)
			default:
				internalError(w, r, h.logger, err)
			}
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
}
