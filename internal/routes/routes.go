package routes

import (
	"context"
	"net/http"
	"time"

	authsvc "github.com/drfintrack/fintrack-auth/internal/auth"
	authhandlers "github.com/drfintrack/fintrack-auth/internal/handlers/auth"
	"github.com/drfintrack/fintrack-auth/internal/middleware"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/httputil"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

/*
 * Package routes wires the auth endpoints, the route guard and the
 * cross-cutting middleware onto a gorilla/mux router.
 */

// Dependencies are the constructed services the routes need.
type Dependencies struct {
	BasePath      string
	AllowedOrigin string
	Tokens        *jwt.Manager
	Users         repository.UserStore
	Auth          *authsvc.Service
}

/*
 * CORSMiddleware sets the cross-origin headers for the configured frontend
 * origin and answers preflight requests.
 *
 * Headers Set:
 *   - Access-Control-Allow-Origin
 *   - Access-Control-Allow-Methods
 *   - Access-Control-Allow-Headers
 *   - Access-Control-Allow-Credentials
 */
func CORSMiddleware(allowedOrigin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				debug.Debug("Handling OPTIONS preflight request from origin: %s", r.Header.Get("Origin"))
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware writes one structured entry per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := debug.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        routeTemplate(r),
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request completed with server error")
			return
		}
		entry.Info("request completed")
	})
}

// routeTemplate avoids logging path tokens such as /verify-email/{token}.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports 200 when the credential store answers a ping.
func HealthHandler(users repository.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := users.Ping(ctx); err != nil {
			debug.Error("Health check failed: %v", err)
			httputil.RespondWithJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		httputil.RespondWithJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

/*
 * SetupRoutes configures all application routes and middleware.
 *
 * Route Groups:
 *   - Public: register, login, verify-email, forgot-password, reset-password
 *   - Session: resend-verification, me
 *   - Session + verified email: 2fa/setup, 2fa/verify, 2fa/disable, 2fa/backup-codes
 *   - Health: /healthz outside the base path
 */
func SetupRoutes(r *mux.Router, deps Dependencies) {
	debug.Info("Initializing route configuration")

	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware(deps.AllowedOrigin))
	r.HandleFunc("/healthz", HealthHandler(deps.Users)).Methods(http.MethodGet)

	h := authhandlers.NewHandler(deps.Auth)
	requireAuth := middleware.RequireAuth(deps.Tokens, deps.Users)

	api := r.PathPrefix(deps.BasePath).Subrouter()
	api.HandleFunc("/register", h.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/verify-email/{token}", h.VerifyEmailHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/forgot-password", h.ForgotPasswordHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/reset-password/{token}", h.ResetPasswordHandler).Methods(http.MethodPost, http.MethodOptions)

	api.Handle("/resend-verification", requireAuth(http.HandlerFunc(h.ResendVerificationHandler))).
		Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/me", requireAuth(http.HandlerFunc(h.MeHandler))).Methods(http.MethodGet, http.MethodOptions)

	twoFactor := api.PathPrefix("/2fa").Subrouter()
	twoFactor.Use(requireAuth, middleware.RequireEmailVerification)
	twoFactor.HandleFunc("/setup", h.SetupTwoFactorHandler).Methods(http.MethodPost, http.MethodOptions)
	twoFactor.HandleFunc("/verify", h.VerifyTwoFactorHandler).Methods(http.MethodPost, http.MethodOptions)
	twoFactor.HandleFunc("/disable", h.DisableTwoFactorHandler).Methods(http.MethodPost, http.MethodOptions)
	twoFactor.HandleFunc("/backup-codes", h.RegenerateBackupCodesHandler).Methods(http.MethodPost, http.MethodOptions)

	debug.Info("Route configuration completed successfully")
}
