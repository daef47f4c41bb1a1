package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
)

const providerTimeout = 10 * time.Second

// TokenResponse is the provider's answer to a code exchange
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	IDToken     string `json:"id_token"`
	Scope       string `json:"scope"`
}

// ProviderClient performs the outbound calls of the authorization-code flow
type ProviderClient interface {
	// ExchangeCode swaps the authorization code for provider tokens.
	// Any non-success answer must come back as apperrors.ErrUpstreamRejected.
	ExchangeCode(ctx context.Context, code string) (TokenResponse, error)

	// FetchProfile loads the raw userinfo document.
	// Any non-success answer must come back as apperrors.ErrUpstreamRejected.
	FetchProfile(ctx context.Context, accessToken string) (map[string]any, error)
}

// HTTPProviderClient is the default ProviderClient over plain HTTP.
// Provider failures are logged with detail but surface only as the uniform
// upstream rejection: callers never see provider internals.
type HTTPProviderClient struct {
	TokenURL    string
	UserInfoURL string

	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string

	client *http.Client
	logger logger.Logger
}

func NewHTTPProviderClient(cfg Config, l logger.Logger) *HTTPProviderClient {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = "https://graph.microsoft.com/v1.0/me"
	}

	return &HTTPProviderClient{
		TokenURL:     tokenURL,
		UserInfoURL:  userInfoURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		client:       &http.Client{Timeout: providerTimeout},
		logger:       l,
	}
}

func (c *HTTPProviderClient) ExchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	var tokens TokenResponse

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("client_id", c.ClientID)
	data.Set("client_secret", c.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", c.RedirectURI)
	data.Set("grant_type", "authorization_code")
	data.Set("scope", c.Scopes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return tokens, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("oauth token exchange failed", "error", err)
		return tokens, fmt.Errorf("token exchange: %w", apperrors.ErrUpstreamRejected)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.logger.Warn("oauth token exchange rejected", "status_code", resp.StatusCode, "body", string(body))
		return tokens, fmt.Errorf("token exchange status %d: %w", resp.StatusCode, apperrors.ErrUpstreamRejected)
	}

	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		c.logger.Warn("oauth token response malformed", "error", err)
		return tokens, fmt.Errorf("token exchange decode: %w", apperrors.ErrUpstreamRejected)
	}

	return tokens, nil
}

func (c *HTTPProviderClient) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("oauth userinfo fetch failed", "error", err)
		return nil, fmt.Errorf("userinfo fetch: %w", apperrors.ErrUpstreamRejected)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("oauth userinfo rejected", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("userinfo status %d: %w", resp.StatusCode, apperrors.ErrUpstreamRejected)
	}

	var profile map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		c.logger.Warn("oauth userinfo malformed", "error", err)
		return nil, fmt.Errorf("userinfo decode: %w", apperrors.ErrUpstreamRejected)
	}

	return profile, nil
}
