package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authsvc "github.com/drfintrack/fintrack-auth/internal/auth"
	"github.com/drfintrack/fintrack-auth/internal/config"
	"github.com/drfintrack/fintrack-auth/internal/database"
	"github.com/drfintrack/fintrack-auth/internal/db"
	"github.com/drfintrack/fintrack-auth/internal/db/gormdb"
	"github.com/drfintrack/fintrack-auth/internal/email"
	"github.com/drfintrack/fintrack-auth/internal/email/providers"
	"github.com/drfintrack/fintrack-auth/internal/limiter"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/internal/routes"
	servertls "github.com/drfintrack/fintrack-auth/internal/tls"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/drfintrack/fintrack-auth/pkg/password"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize debug package first with default settings
	debug.Reinitialize()

	if err := godotenv.Load(); err != nil {
		debug.Info("No .env file loaded from working directory: %v", err)
	}
	// Reinitialize debug package with loaded environment variables
	debug.Reinitialize()

	if err := run(); err != nil {
		debug.Error("Server exited with error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := jwt.NewManager(cfg.JWTSecret)
	if err != nil {
		return err
	}

	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		return err
	}

	attempts, closeLimiter := newLimiter(ctx, cfg)
	defer closeLimiter()

	debug.Info("Password policy: %s", password.GetComplexityDescription(cfg.Password))
	auth := authsvc.NewService(store, tokens, mailer, attempts, authsvc.Options{
		Issuer:         cfg.AppName,
		PasswordPolicy: cfg.Password,
		MailTimeout:    cfg.Mail.Timeout,
	})

	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Dependencies{
		BasePath:      cfg.BasePath,
		AllowedOrigin: cfg.HTTP.CORSAllowedOrigin,
		Tokens:        tokens,
		Users:         store,
		Auth:          auth,
	})

	srv := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      http.TimeoutHandler(r, cfg.HTTP.RequestTimeout, `{"success":false,"message":"Request timed out"}`),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	tlsCfg := servertls.NewConfig()
	if tlsCfg.Enabled() {
		srv.TLSConfig, err = tlsCfg.LoadTLSConfig()
		if err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		var err error
		if srv.TLSConfig != nil {
			debug.Info("Starting HTTPS server on %s", srv.Addr)
			err = srv.ListenAndServeTLS("", "")
		} else {
			debug.Info("Starting server on %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		debug.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		debug.Error("Graceful shutdown failed: %v", err)
	}

	debug.Info("Waiting for pending emails")
	auth.Wait()
	debug.Info("Server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.UserStore, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		debug.Info("Using SQLite store at %s", cfg.SQLitePath)
		store, err := gormdb.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		sqlDB, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return db.NewUserStore(db.NewDB(sqlDB)), nil
	}
}

func newMailer(ctx context.Context, cfg *config.Config) (*email.Service, error) {
	provider, err := providers.NewFromConfig(&cfg.Mail.Provider)
	if err != nil {
		return nil, err
	}
	mailer, err := email.NewService(provider, email.Options{
		AppName:     cfg.AppName,
		FrontendURL: cfg.FrontendURL,
		Attempts:    cfg.Mail.Attempts,
	})
	if err != nil {
		return nil, err
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.Mail.Timeout)
	defer cancel()
	if err := mailer.Verify(verifyCtx); err != nil {
		// Not fatal: a mail outage should not take logins down.
		debug.Warning("Email provider check failed: %v", err)
	} else {
		debug.Info("Email provider is ready")
	}
	return mailer, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (limiter.Limiter, func()) {
	if cfg.Redis.Addr == "" {
		debug.Warning("REDIS_ADDR not set, second factor attempts are not limited")
		return limiter.Noop{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		debug.Warning("Redis ping failed, limiter will fail open until it recovers: %v", err)
	}
	return limiter.NewRedis(client, cfg.MFA.MaxAttempts, cfg.MFA.Lockout), func() {
		if err := client.Close(); err != nil {
			debug.Error("Failed to close redis client: %v", err)
		}
	}
}
