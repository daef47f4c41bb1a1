package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
)

const (
	defaultScopes   = "openid email profile"
	defaultStateTTL = 10 * time.Minute
)

// StateStore holds pending anti-CSRF states. Single-use: Consume removes the
// state whatever the outcome.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}

type Config struct {
	// Provider is the single configured provider name, e.g. "entra"
	Provider string

	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string

	// Scopes requested from the provider. Defaults to openid email profile
	Scopes string

	// Endpoint overrides, mostly for tests. When empty, entra endpoints are
	// derived from TenantID.
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string

	// How long a pending state stays valid
	StateTTL time.Duration
}

// Service implements the authorization-code exchange with CSRF-state
// protection against one configured provider.
type Service struct {
	provider     string
	authorizeURL string
	clientID     string
	redirectURI  string
	scopes       string
	stateTTL     time.Duration

	states StateStore
	client ProviderClient
	logger logger.Logger
}

func NewService(cfg Config, states StateStore, client ProviderClient, l logger.Logger) (*Service, error) {
	if states == nil {
		return nil, errors.New("state store must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if cfg.Scopes == "" {
		cfg.Scopes = defaultScopes
	}
	if cfg.StateTTL == 0 {
		cfg.StateTTL = defaultStateTTL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", cfg.TenantID)
	}

	if client == nil {
		client = NewHTTPProviderClient(cfg, l)
	}

	return &Service{
		provider:     cfg.Provider,
		authorizeURL: cfg.AuthorizeURL,
		clientID:     cfg.ClientID,
		redirectURI:  cfg.RedirectURI,
		scopes:       cfg.Scopes,
		stateTTL:     cfg.StateTTL,
		states:       states,
		client:       client,
		logger:       l,
	}, nil
}

// AuthorizeURL stores a fresh pending state and builds the provider
// authorization URL embedding it.
// Returns apperrors.ErrUnknownProvider for anything but the configured one.
func (s *Service) AuthorizeURL(ctx context.Context, provider string) (string, error) {
	if provider != s.provider {
		return "", fmt.Errorf("provider %q: %w", provider, apperrors.ErrUnknownProvider)
	}

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("error while generating state. Err: %w", err)
	}

	if err := s.states.Save(ctx, state, s.stateTTL); err != nil {
		return "", fmt.Errorf("error while saving state. Err: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", s.clientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", s.redirectURI)
	params.Set("scope", s.scopes)
	params.Set("state", state)
	params.Set("response_mode", "query")

	return s.authorizeURL + "?" + params.Encode(), nil
}

// VerifyState consumes the state and reports whether it was pending.
// Consumed either way, so a replayed state always fails.
func (s *Service) VerifyState(ctx context.Context, state string) (bool, error) {
	return s.states.Consume(ctx, state)
}

// Exchange swaps the authorization code for provider tokens
func (s *Service) Exchange(ctx context.Context, provider string, code string) (TokenResponse, error) {
	if provider != s.provider {
		return TokenResponse{}, fmt.Errorf("provider %q: %w", provider, apperrors.ErrUnknownProvider)
	}

	return s.client.ExchangeCode(ctx, code)
}

// FetchEmail loads the provider profile and extracts the login email from
// the mail field, falling back to userPrincipalName. A reachable provider
// with an email-less profile is apperrors.ErrProviderEmailMissing, distinct
// from the upstream rejection.
func (s *Service) FetchEmail(ctx context.Context, provider string, accessToken string) (string, error) {
	if provider != s.provider {
		return "", fmt.Errorf("provider %q: %w", provider, apperrors.ErrUnknownProvider)
	}

	profile, err := s.client.FetchProfile(ctx, accessToken)
	if err != nil {
		return "", err
	}

	if email, ok := profile["mail"].(string); ok && email != "" {
		return email, nil
	}
	if email, ok := profile["userPrincipalName"].(string); ok && email != "" {
		return email, nil
	}

	return "", apperrors.ErrProviderEmailMissing
}

// Provider returns the configured provider name for the methods listing
func (s *Service) Provider() string { return s.provider }

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
