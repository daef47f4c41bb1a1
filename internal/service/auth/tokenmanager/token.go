package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
)

// Token type tags embedded in every issued token.
// A token presented for the wrong use is rejected even with a valid signature.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const (
	defaultSigningMethod   = "HS256"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	TokenType string    `json:"type"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign token payloads
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set then defaults are used. Access TTL is expected to be much
	// shorter than refresh TTL.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager signs and verifies self-contained session tokens.
// It is a pure codec: persistence of refresh tokens lives in the auth service.
type TokenManager struct {
	key string
	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method: %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Issue signs a token of the given type for the user
func (m *TokenManager) Issue(userID uuid.UUID, tokenType string) (models.IssuedToken, error) {
	var issued models.IssuedToken

	var ttl time.Duration
	switch tokenType {
	case TypeAccess:
		ttl = m.accessTTL
	case TypeRefresh:
		ttl = m.refreshTTL
	default:
		return issued, fmt.Errorf("unknown token type: %q", tokenType)
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    userID,
			TokenType: tokenType,
		},
	)
	signed, err := token.SignedString([]byte(m.key))
	if err != nil {
		return issued, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Parse verifies signature, expiry and the type tag.
// Every failure collapses into apperrors.ErrAuthRejected: the caller never
// learns whether the signature, the expiry or the type was wrong.
func (m *TokenManager) Parse(tokenString string, expectedType string) (uuid.UUID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token parse failed: %w", apperrors.ErrAuthRejected)
	}

	if claims.TokenType != expectedType {
		return uuid.Nil, fmt.Errorf("token type mismatch: %w", apperrors.ErrAuthRejected)
	}

	return claims.UserID, nil
}
