package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/drfintrack/fintrack-auth/pkg/env"
	"github.com/drfintrack/fintrack-auth/pkg/password"
)

// StoreDriver selects the credential store backend.
type StoreDriver string

const (
	DriverPostgres StoreDriver = "postgres"
	DriverSQLite   StoreDriver = "sqlite"
)

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")
	ErrUnknownDriver    = errors.New("unknown STORE_DRIVER")
)

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the connection URL form used by golang-migrate.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig holds the second-factor limiter backend settings. An empty
// Addr disables limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MFAConfig bounds failed second-factor attempts per user.
type MFAConfig struct {
	MaxAttempts int
	Lockout     time.Duration
}

// MailConfig holds provider credentials and delivery policy.
type MailConfig struct {
	Provider emailtypes.Config
	Attempts int
	Timeout  time.Duration
}

// HTTPConfig holds server timeouts and CORS settings.
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	CORSAllowedOrigin string
}

// Config holds the application configuration
type Config struct {
	Host        string
	Port        int
	BasePath    string
	JWTSecret   string
	FrontendURL string
	AppName     string

	StoreDriver StoreDriver
	Database    DatabaseConfig
	SQLitePath  string

	Redis    RedisConfig
	MFA      MFAConfig
	Mail     MailConfig
	Password password.Policy
	HTTP     HTTPConfig
}

// Load reads the configuration from environment variables. Callers load
// .env files beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		Host:        env.GetOrDefault("FT_HOST", "0.0.0.0"),
		Port:        env.GetInt("FT_PORT", 5000),
		BasePath:    normalizeBasePath(env.GetOrDefault("AUTH_BASE_PATH", "/api/auth")),
		JWTSecret:   env.GetOrDefault("JWT_SECRET", ""),
		FrontendURL: strings.TrimRight(env.GetOrDefault("FRONTEND_URL", "http://localhost:5173"), "/"),
		AppName:     env.GetOrDefault("APP_NAME", "FinTrack"),

		StoreDriver: StoreDriver(strings.ToLower(env.GetOrDefault("STORE_DRIVER", string(DriverPostgres)))),
		Database: DatabaseConfig{
			Host:     env.GetOrDefault("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 5432),
			User:     env.GetOrDefault("DB_USER", "fintrack"),
			Password: env.GetOrDefault("DB_PASSWORD", ""),
			Name:     env.GetOrDefault("DB_NAME", "fintrack"),
			SSLMode:  env.GetOrDefault("DB_SSLMODE", "disable"),
		},
		SQLitePath: env.GetOrDefault("SQLITE_PATH", "fintrack-auth.db"),

		Redis: RedisConfig{
			Addr:     env.GetOrDefault("REDIS_ADDR", ""),
			Password: env.GetOrDefault("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
		},
		MFA: MFAConfig{
			MaxAttempts: env.GetInt("MFA_MAX_ATTEMPTS", 5),
			Lockout:     env.GetDuration("MFA_LOCKOUT", 15*time.Minute),
		},
		Mail: MailConfig{
			Provider: emailtypes.Config{
				ProviderType: emailtypes.ProviderType(strings.ToLower(env.GetOrDefault("EMAIL_PROVIDER", string(emailtypes.ProviderLog)))),
				APIKey:       env.GetOrDefault("EMAIL_API_KEY", ""),
				FromName:     env.GetOrDefault("EMAIL_FROM_NAME", "FinTrack"),
				FromAddress:  env.GetOrDefault("EMAIL_FROM_ADDRESS", "noreply@fintrack.local"),
				Domain:       env.GetOrDefault("MAILGUN_DOMAIN", ""),
				SMTPHost:     env.GetOrDefault("SMTP_HOST", ""),
				SMTPPort:     env.GetInt("SMTP_PORT", 587),
				SMTPUsername: env.GetOrDefault("SMTP_USERNAME", ""),
				SMTPPassword: env.GetOrDefault("SMTP_PASSWORD", ""),
			},
			Attempts: env.GetInt("EMAIL_RETRIES", 3),
			Timeout:  env.GetDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Password: password.Policy{
			MinLength:           env.GetInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase:    env.GetBoolOrDefault("PASSWORD_REQUIRE_UPPERCASE", true),
			RequireLowercase:    env.GetBoolOrDefault("PASSWORD_REQUIRE_LOWERCASE", true),
			RequireNumbers:      env.GetBoolOrDefault("PASSWORD_REQUIRE_NUMBERS", true),
			RequireSpecialChars: env.GetBoolOrDefault("PASSWORD_REQUIRE_SPECIAL_CHARS", false),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       env.GetDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      env.GetDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       env.GetDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:    env.GetDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
			CORSAllowedOrigin: env.GetOrDefault("CORS_ALLOWED_ORIGIN", ""),
		},
	}

	if cfg.HTTP.CORSAllowedOrigin == "" {
		cfg.HTTP.CORSAllowedOrigin = cfg.FrontendURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Info("Configuration loaded - store: %s, mail provider: %s, base path: %s",
		cfg.StoreDriver, cfg.Mail.Provider.ProviderType, cfg.BasePath)
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StoreDriver)
	}
	if c.MFA.MaxAttempts <= 0 {
		return fmt.Errorf("MFA_MAX_ATTEMPTS must be positive, got %d", c.MFA.MaxAttempts)
	}
	if c.Mail.Attempts <= 0 {
		return fmt.Errorf("EMAIL_RETRIES must be positive, got %d", c.Mail.Attempts)
	}
	return nil
}

// GetAddress returns the full address for the server to listen on
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func normalizeBasePath(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}
