package config

import (
	"testing"
	"time"

	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "/api/auth", cfg.BasePath)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, emailtypes.ProviderLog, cfg.Mail.Provider.ProviderType)
	assert.Equal(t, 3, cfg.Mail.Attempts)
	assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
	assert.Equal(t, 5, cfg.MFA.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.MFA.Lockout)
	assert.Equal(t, 8, cfg.Password.MinLength)
	assert.Equal(t, "http://localhost:5173", cfg.HTTP.CORSAllowedOrigin)
	assert.Equal(t, "0.0.0.0:5000", cfg.GetAddress())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FT_PORT", "9090")
	t.Setenv("AUTH_BASE_PATH", "auth/")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("MFA_LOCKOUT", "5m")
	t.Setenv("EMAIL_PROVIDER", "mailgun")
	t.Setenv("MAILGUN_DOMAIN", "mg.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/auth", cfg.BasePath)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
	assert.Equal(t, 5*time.Minute, cfg.MFA.Lockout)
	assert.Equal(t, emailtypes.ProviderMailgun, cfg.Mail.Provider.ProviderType)
	assert.Equal(t, "mg.example.com", cfg.Mail.Provider.Domain)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestDatabaseConfig(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.URL())
}
