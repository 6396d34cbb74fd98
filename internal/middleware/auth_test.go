package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/testutil"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardResponse struct {
	Success                   bool   `json:"success"`
	Message                   string `json:"message"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

// identityEcho writes the attached identity's email.
var identityEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	userID, _ := jwt.GetUserID(r.Context())
	w.Header().Set("X-User-ID", userID)
	_, _ = w.Write([]byte(identity.Email))
})

func TestRequireAuth(t *testing.T) {
	debug.SetOutput(io.Discard)
	store := testutil.NewMemoryStore()
	tokens := testutil.NewTokenManager(t)
	alice := testutil.CreateTestUser(t, store, "Alice", "alice@example.com", testutil.DefaultTestPassword, true)
	handler := RequireAuth(tokens, store)(identityEcho)

	t.Run("valid session", func(t *testing.T) {
		req := testutil.MakeAuthenticatedRequest(t, tokens, http.MethodGet, "/me", nil, alice.ID.String())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "alice@example.com", rr.Body.String())
		assert.Equal(t, alice.ID.String(), rr.Header().Get("X-User-ID"))
	})

	t.Run("OPTIONS passes through", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/me", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	verificationToken, err := tokens.IssueEmailVerification(alice.ID.String())
	require.NoError(t, err)
	otherTokens, err := jwt.NewManager("another-secret")
	require.NoError(t, err)
	forged, err := otherTokens.IssueSession(alice.ID.String())
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing header", header: "", message: msgNotAuthorized},
		{name: "wrong scheme", header: "Basic abc", message: msgNotAuthorized},
		{name: "garbage token", header: "Bearer nope", message: msgNotAuthorized},
		{name: "wrong purpose", header: "Bearer " + verificationToken, message: msgNotAuthorized},
		{name: "wrong secret", header: "Bearer " + forged, message: msgNotAuthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			var resp guardResponse
			testutil.AssertJSONResponse(t, rr, http.StatusUnauthorized, &resp)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		req := testutil.MakeAuthenticatedRequest(t, tokens, http.MethodGet, "/me", nil, uuid.NewString())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		var resp guardResponse
		testutil.AssertJSONResponse(t, rr, http.StatusUnauthorized, &resp)
		assert.Equal(t, msgUserNotFound, resp.Message)
	})

	t.Run("store failure", func(t *testing.T) {
		store.FailWith = errors.New("db down")
		defer func() { store.FailWith = nil }()

		req := testutil.MakeAuthenticatedRequest(t, tokens, http.MethodGet, "/me", nil, alice.ID.String())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestAuthorize(t *testing.T) {
	handler := Authorize(models.RoleAdmin)(identityEcho)

	t.Run("no identity", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(WithIdentity(req.Context(), models.Identity{ID: uuid.New(), Role: models.RoleUser}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		var resp guardResponse
		testutil.AssertJSONResponse(t, rr, http.StatusForbidden, &resp)
		assert.Equal(t, msgNotAuthorized, resp.Message)
	})

	t.Run("role allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(WithIdentity(req.Context(), models.Identity{ID: uuid.New(), Email: "root@example.com", Role: models.RoleAdmin}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "root@example.com", rr.Body.String())
	})
}

func TestRequireEmailVerification(t *testing.T) {
	handler := RequireEmailVerification(identityEcho)

	req := httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
	req = req.WithContext(WithIdentity(req.Context(), models.Identity{ID: uuid.New(), Email: "bob@example.com"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp guardResponse
	testutil.AssertJSONResponse(t, rr, http.StatusForbidden, &resp)
	assert.True(t, resp.RequiresEmailVerification)
	assert.Equal(t, msgVerificationRequired, resp.Message)

	req = httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
	req = req.WithContext(WithIdentity(req.Context(), models.Identity{ID: uuid.New(), Email: "bob@example.com", IsEmailVerified: true}))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
