package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authgate/internal/db"
	"github.com/nkiryanov/authgate/internal/handlers"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/repository/postgres"
	"github.com/nkiryanov/authgate/internal/service/audit"
	"github.com/nkiryanov/authgate/internal/service/auth"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authgate/internal/service/authcode"
	"github.com/nkiryanov/authgate/internal/service/item"
	"github.com/nkiryanov/authgate/internal/service/oauth"
	"github.com/nkiryanov/authgate/internal/service/oauth/statestore"
	"github.com/nkiryanov/authgate/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	recorder *audit.Recorder
	pool     *pgxpool.Pool
	logger   logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		Alg:        c.JWTAlg,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	codeService, err := authcode.NewService(authcode.Config{
		CodeLength: c.CodeLength,
		CodeTTL:    c.CodeTTL,
	}, storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating code service. Err: %w", err)
	}

	// Shared oauth state needs redis, a single instance can keep it local
	var states oauth.StateStore
	if c.RedisAddr != "" {
		states = statestore.NewRedisStore(redis.NewClient(&redis.Options{Addr: c.RedisAddr}))
	} else {
		states = statestore.NewMemoryStore(0)
	}

	oauthService, err := oauth.NewService(oauth.Config{
		Provider:     c.OAuthProvider,
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		TenantID:     c.OAuthTenantID,
		RedirectURI:  c.OAuthRedirectURI,
		Scopes:       c.OAuthScopes,
	}, states, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating oauth service. Err: %w", err)
	}

	userService := user.NewService(auth.DefaultHasher, storage, logger)
	itemService := item.NewService(storage)
	auditService := audit.NewService(storage)
	recorder := audit.NewRecorder(auditService, logger)

	// Bootstrap admin if configured
	if c.InitialAdminEmail != "" && c.InitialAdminPassword != "" {
		admin, err := userService.EnsureAdmin(ctx, c.InitialAdminEmail, c.InitialAdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error while ensuring initial admin. Err: %w", err)
		}
		logger.Info("initial admin ensured", "email", admin.Email)
	}

	mux := handlers.NewRouter(handlers.RouterConfig{
		Auth:     authService,
		Users:    userService,
		Codes:    codeService,
		OAuth:    oauthService,
		Items:    itemService,
		Audit:    auditService,
		Recorder: recorder,

		Features: handlers.Features{
			Password: c.AuthPasswordEnabled,
			Code:     c.AuthCodeEnabled,
			OAuth:    c.AuthOAuthEnabled,
		},
		Debug:       c.Debug,
		CORSOrigins: c.CORSOrigins,

		Logger: logger,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		recorder:   recorder,
		pool:       pool,
		logger:     logger,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Audit workers live for the whole server run and drain on shutdown
	recorderStopped := s.recorder.Run(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-recorderStopped
	s.pool.Close()

	return err
}
