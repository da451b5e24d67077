package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App     AppConfig
	OAuth   OAuthConfig
	Backend BackendConfig
	Session SessionConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Audit   AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// OAuthConfig holds identity provider settings. Endpoints are derived
// from the Keycloak server URL and realm.
type OAuthConfig struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	SkewSeconds  int
}

// BackendConfig describes the upstream API the proxy forwards to.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SessionConfig defines session cookie and store behavior.
type SessionConfig struct {
	CookieName             string
	CookieSecure           bool
	Store                  string
	LifetimeMinutes        int
	CleanupIntervalMinutes int
}

// RedisConfig holds Redis connection values for the redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuditConfig holds the optional audit webhook endpoint.
type AuditConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		OAuth: OAuthConfig{
			ServerURL:    os.Getenv("OAUTH_SERVER_URL"),
			Realm:        getEnv("OAUTH_REALM", "master"),
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
			Scopes:       splitScopes(getEnv("OAUTH_SCOPES", "openid profile email")),
			SkewSeconds:  getEnvAsInt("OAUTH_TOKEN_SKEW_SECONDS", 30),
		},
		Backend: BackendConfig{
			BaseURL:        os.Getenv("BACKEND_BASE_URL"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30),
		},
		Session: SessionConfig{
			CookieName:             getEnv("SESSION_COOKIE_NAME", "s"),
			CookieSecure:           getEnvAsBool("SESSION_COOKIE_SECURE", false),
			Store:                  getEnv("SESSION_STORE", "memory"),
			LifetimeMinutes:        getEnvAsInt("SESSION_LIFETIME_MINUTES", 720),
			CleanupIntervalMinutes: getEnvAsInt("SESSION_CLEANUP_INTERVAL_MINUTES", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Audit: AuditConfig{
			WebhookURL: getEnv("AUDIT_WEBHOOK_URL", ""),
		},
	}

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AuthURL returns the identity provider authorization endpoint.
func (o OAuthConfig) AuthURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth", strings.TrimRight(o.ServerURL, "/"), o.Realm)
}

// TokenURL returns the identity provider token endpoint.
func (o OAuthConfig) TokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(o.ServerURL, "/"), o.Realm)
}

// Skew returns the safety margin applied to token expiry checks.
func (o OAuthConfig) Skew() time.Duration {
	if o.SkewSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.SkewSeconds) * time.Second
}

// Timeout returns the outbound backend call timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Lifetime returns the maximum session lifetime.
func (s SessionConfig) Lifetime() time.Duration {
	if s.LifetimeMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(s.LifetimeMinutes) * time.Minute
}

// CleanupInterval returns how often expired sessions are evicted.
func (s SessionConfig) CleanupInterval() time.Duration {
	if s.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.CleanupIntervalMinutes) * time.Minute
}

func splitScopes(raw string) []string {
	return strings.Fields(raw)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
