package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/authgate/internal/handlers/middleware"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type sessionAuth interface {
	authService

	// UserFromAccessToken resolves the bearer token, used by the auth
	// middleware
	UserFromAccessToken(ctx context.Context, token string) (models.User, error)
}

type directoryService interface {
	userDirectory
	adminUserService
}

type RouterConfig struct {
	Auth     sessionAuth
	Users    directoryService
	Codes    codeService
	OAuth    oauthService
	Items    itemService
	Audit    auditQueryService
	Recorder interface{ Submit(record models.AuditRecord) }

	Features    Features
	Debug       bool
	CORSOrigins []string

	Logger logger.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuth(cfg.Auth, cfg.Users, cfg.OAuth, cfg.Features, cfg.Debug, cfg.Logger)
	adminHandler := NewAdmin(cfg.Users, cfg.Audit, cfg.Logger)
	demoHandler := NewDemo(cfg.Items, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Auth)
	adminMiddleware := middleware.RequireAdmin()

	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return authMiddleware(adminMiddleware(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)

	mux.HandleFunc("GET /auth/methods", authHandler.methods)
	mux.HandleFunc("POST /auth/register", authHandler.register)
	mux.HandleFunc("POST /auth/login", authHandler.login)
	mux.Handle("POST /auth/logout", withAuth(http.HandlerFunc(authHandler.logout)))
	mux.HandleFunc("POST /auth/refresh", authHandler.refresh)
	mux.Handle("GET /auth/me", withAuth(http.HandlerFunc(authHandler.me)))
	mux.Handle("DELETE /auth/me", withAuth(http.HandlerFunc(authHandler.deleteMe)))
	mux.Handle("GET /auth/me/export", withAuth(http.HandlerFunc(authHandler.exportMe)))

	mux.Handle("POST /auth/code/request", authHandler.codeRequest(cfg.Codes))
	mux.Handle("POST /auth/code/verify", authHandler.codeVerify(cfg.Codes))

	mux.HandleFunc("GET /auth/oidc/{provider}/authorize", authHandler.oauthAuthorize)
	mux.HandleFunc("POST /auth/oidc/{provider}/callback", authHandler.oauthCallback)

	mux.Handle("GET /admin/users", withAdmin(http.HandlerFunc(adminHandler.listUsers)))
	mux.Handle("POST /admin/users", withAdmin(http.HandlerFunc(adminHandler.createUser)))
	mux.Handle("PATCH /admin/users/{id}", withAdmin(http.HandlerFunc(adminHandler.updateUser)))
	mux.Handle("GET /admin/audit-logs", withAdmin(http.HandlerFunc(adminHandler.listAuditLogs)))

	mux.Handle("GET /demo/items", withAuth(http.HandlerFunc(demoHandler.list)))
	mux.Handle("POST /demo/items", withAuth(http.HandlerFunc(demoHandler.create)))
	mux.Handle("GET /demo/items/{id}", withAuth(http.HandlerFunc(demoHandler.get)))
	mux.Handle("PUT /demo/items/{id}", withAuth(http.HandlerFunc(demoHandler.update)))
	mux.Handle("DELETE /demo/items/{id}", withAuth(http.HandlerFunc(demoHandler.delete)))

	return chain(mux,
		middleware.RequestID(),
		middleware.Logger(cfg.Logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.Audit(cfg.Recorder),
		middleware.Recover(cfg.Logger),
	)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		Status string `json:"status"`
	}
	render.JSON(w, HealthResponse{Status: "ok"})
}
