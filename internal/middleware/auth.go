package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/httputil"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/google/uuid"
)

const (
	msgNotAuthorized        = "Not authorized to access this route"
	msgUserNotFound         = "User not found"
	msgVerificationRequired = "Email verification required"
	msgServerError          = "Server error"
)

type identityKey struct{}

// UserFinder loads the user behind a session token.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID, opts repository.FindOptions) (*models.User, error)
}

// IdentityFromContext returns the principal attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(models.Identity)
	return identity, ok
}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, identity)
	return jwt.WithUserID(ctx, identity.ID.String())
}

// RequireAuth middleware ensures that only requests carrying a valid
// session bearer token for an existing user reach the route
func RequireAuth(tokens *jwt.Manager, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip middleware for OPTIONS requests
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				debug.Debug("[AUTH] No bearer token for %s %s", r.Method, r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, msgNotAuthorized)
				return
			}

			claims, ok := tokens.Verify(token, jwt.PurposeSession)
			if !ok {
				debug.Warning("[AUTH] Invalid session token for %s %s", r.Method, r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, msgNotAuthorized)
				return
			}
			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				debug.Warning("[AUTH] Session token carries malformed user id")
				httputil.RespondWithError(w, http.StatusUnauthorized, msgNotAuthorized)
				return
			}

			user, err := users.FindByID(r.Context(), userID, repository.FindOptions{})
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					debug.Warning("[AUTH] Session for missing user %s", userID)
					httputil.RespondWithError(w, http.StatusUnauthorized, msgUserNotFound)
					return
				}
				debug.Error("[AUTH] Error loading user %s: %v", userID, err)
				httputil.RespondWithError(w, http.StatusInternalServerError, msgServerError)
				return
			}

			debug.Debug("[AUTH] Authentication successful for user: %s with role: %s", user.ID, user.Role)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user.Identity())))
		})
	}
}

// Authorize restricts a route to the given roles. It must run after RequireAuth.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.RespondWithError(w, http.StatusUnauthorized, msgNotAuthorized)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			debug.Warning("User %s with role %s denied access to %s", identity.ID, identity.Role, r.URL.Path)
			httputil.RespondWithError(w, http.StatusForbidden, msgNotAuthorized)
		})
	}
}

type verificationRequired struct {
	Success                   bool   `json:"success"`
	Message                   string `json:"message"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

// RequireEmailVerification blocks users that have not verified their email.
// It must run after RequireAuth.
func RequireEmailVerification(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			httputil.RespondWithError(w, http.StatusUnauthorized, msgNotAuthorized)
			return
		}
		if !identity.IsEmailVerified {
			httputil.RespondWithJSON(w, http.StatusForbidden, verificationRequired{
				Message:                   msgVerificationRequired,
				RequiresEmailVerification: true,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}
