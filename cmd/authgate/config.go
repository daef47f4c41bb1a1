package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authgate/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultJWTAlg       = "HS256"
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultCodeLength   = 6
	defaultCodeTTL      = 10 * time.Minute
	defaultOAuthScopes  = "openid email profile"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis address for shared oauth state. Empty means the process-local
	// state store, good for a single instance only.
	RedisAddr string

	// Secret key used to sign JWT tokens
	SecretKey string

	// JWT signing algorithm
	JWTAlg string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Debug surfaces issued codes in responses and drops the Secure cookie
	// flag. Never enable in production.
	Debug bool

	// Feature toggles per authentication method
	AuthPasswordEnabled bool
	AuthCodeEnabled     bool
	AuthOAuthEnabled    bool

	// One-time code settings
	CodeLength int
	CodeTTL    time.Duration

	// OAuth provider settings
	OAuthProvider     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTenantID     string
	OAuthRedirectURI  string
	OAuthScopes       string

	// Origins allowed for cross-origin requests
	CORSOrigins []string

	// Optional bootstrap admin created (or promoted) at startup
	InitialAdminEmail    string
	InitialAdminPassword string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		Environment: defaultEnvironment,
		ListenAddr:  defaultListenAddr,
		JWTAlg:      defaultJWTAlg,
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,

		AuthPasswordEnabled: true,
		AuthCodeEnabled:     true,
		AuthOAuthEnabled:    false,

		CodeLength:  defaultCodeLength,
		CodeTTL:     defaultCodeTTL,
		OAuthScopes: defaultOAuthScopes,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if parsed, err := strconv.ParseBool(value); value != "" && err == nil {
				*o = parsed
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); value != "" && err == nil {
				*o = parsed
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); value != "" && err == nil {
				*o = parsed
			}
		}
	}
	setStrings := func(o *[]string) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*o = parts
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":  setString(&c.ListenAddr),
		"DATABASE_URI": setString(&c.DatabaseDSN),
		"REDIS_ADDR":   setString(&c.RedisAddr),
		"SECRET_KEY":   setString(&c.SecretKey),
		"JWT_ALG":      setString(&c.JWTAlg),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"ENVIRONMENT":  setString(&c.Environment),
		"DEBUG":        setBool(&c.Debug),

		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTTL),

		"AUTH_EMAIL_ENABLED": setBool(&c.AuthPasswordEnabled),
		"AUTH_CODE_ENABLED":  setBool(&c.AuthCodeEnabled),
		"AUTH_OAUTH_ENABLED": setBool(&c.AuthOAuthEnabled),

		"AUTH_CODE_LENGTH": setInt(&c.CodeLength),
		"AUTH_CODE_TTL":    setDuration(&c.CodeTTL),

		"OAUTH_PROVIDER":      setString(&c.OAuthProvider),
		"OAUTH_CLIENT_ID":     setString(&c.OAuthClientID),
		"OAUTH_CLIENT_SECRET": setString(&c.OAuthClientSecret),
		"OAUTH_TENANT_ID":     setString(&c.OAuthTenantID),
		"OAUTH_REDIRECT_URI":  setString(&c.OAuthRedirectURI),
		"OAUTH_SCOPES":        setString(&c.OAuthScopes),

		"CORS_ORIGINS": setStrings(&c.CORSOrigins),

		"INITIAL_ADMIN_EMAIL":    setString(&c.InitialAdminEmail),
		"INITIAL_ADMIN_PASSWORD": setString(&c.InitialAdminPassword),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for shared oauth state")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Debug mode")

	return fs.Parse(args)
}

// Validate checks settings that have no workable default
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key must be set")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database connection string must be set")
	}
	if c.AuthOAuthEnabled {
		if c.OAuthProvider == "" || c.OAuthClientID == "" || c.OAuthClientSecret == "" || c.OAuthRedirectURI == "" {
			return errors.New("oauth is enabled but provider settings are incomplete")
		}
	}
	return nil
}
