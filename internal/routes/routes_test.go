package routes

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "github.com/drfintrack/fintrack-auth/internal/auth"
	"github.com/drfintrack/fintrack-auth/internal/testutil"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/password"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

type routerEnv struct {
	router *mux.Router
	store  *testutil.MemoryStore
	mailer *testutil.MockMailer
	svc    *authsvc.Service
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	debug.SetOutput(io.Discard)

	store := testutil.NewMemoryStore()
	mailer := testutil.NewMockMailer()
	tokens := testutil.NewTokenManager(t)
	svc := authsvc.NewService(store, tokens, mailer, nil, authsvc.Options{
		PasswordPolicy: password.DefaultPolicy(),
		MailTimeout:    time.Second,
	})
	t.Cleanup(svc.Wait)

	router := mux.NewRouter()
	SetupRoutes(router, Dependencies{
		BasePath:      "/api/auth",
		AllowedOrigin: testOrigin,
		Tokens:        tokens,
		Users:         store,
		Auth:          svc,
	})
	return &routerEnv{router: router, store: store, mailer: mailer, svc: svc}
}

func (e *routerEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type body struct {
	Success                   bool     `json:"success"`
	Message                   string   `json:"message"`
	Token                     string   `json:"token"`
	Requires2FA               bool     `json:"requires2FA"`
	RequiresEmailVerification bool     `json:"requiresEmailVerification"`
	Secret                    string   `json:"secret"`
	BackupCodes               []string `json:"backupCodes"`
	Status                    string   `json:"status"`
}

func TestHealth(t *testing.T) {
	env := newRouterEnv(t)

	var resp body
	testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), ""), http.StatusOK, &resp)
	assert.Equal(t, "ok", resp.Status)

	env.store.FailWith = errors.New("db down")
	resp = body{}
	testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), ""), http.StatusServiceUnavailable, &resp)
	assert.Equal(t, "unavailable", resp.Status)
}

func TestCORSPreflight(t *testing.T) {
	env := newRouterEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/2fa/setup", nil)
	req.Header.Set("Origin", testOrigin)
	rr := env.do(t, req, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newRouterEnv(t)

	for _, path := range []string{"/api/auth/me", "/api/auth/resend-verification", "/api/auth/2fa/setup"} {
		method := http.MethodPost
		if path == "/api/auth/me" {
			method = http.MethodGet
		}
		var resp body
		testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(method, path, nil), ""), http.StatusUnauthorized, &resp)
		assert.Equal(t, "Not authorized to access this route", resp.Message, path)
	}
}

// Alice registers, is refused 2FA until she verifies her email, enables
// 2FA and then needs a second factor to log in.
func TestAliceScenario(t *testing.T) {
	env := newRouterEnv(t)

	var reg body
	rr := env.do(t, testutil.MakeRequest(t, http.MethodPost, "/api/auth/register", testutil.ValidRegisterRequest("Alice", "alice@example.com")), "")
	testutil.AssertJSONResponse(t, rr, http.StatusCreated, &reg)
	require.NotEmpty(t, reg.Token)
	session := reg.Token

	var resp body
	testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/2fa/setup", nil), session), http.StatusForbidden, &resp)
	assert.True(t, resp.RequiresEmailVerification)

	verification, ok := env.mailer.Last("verification")
	require.True(t, ok)
	resp = body{}
	testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/verify-email/"+verification.Token, nil), ""), http.StatusOK, &resp)

	var setup body
	testutil.AssertJSONResponse(t, env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/2fa/setup", nil), session), http.StatusOK, &setup)
	require.NotEmpty(t, setup.Secret)

	var enabled body
	verifyReq := testutil.MakeRequest(t, http.MethodPost, "/api/auth/2fa/verify", map[string]string{"token": testutil.GenerateTOTPCode(t, setup.Secret)})
	testutil.AssertJSONResponse(t, env.do(t, verifyReq, session), http.StatusOK, &enabled)
	require.Len(t, enabled.BackupCodes, 10)

	var challenge body
	loginReq := testutil.MakeRequest(t, http.MethodPost, "/api/auth/login", testutil.ValidLoginRequest("alice@example.com"))
	testutil.AssertJSONResponse(t, env.do(t, loginReq, ""), http.StatusOK, &challenge)
	assert.True(t, challenge.Requires2FA)
	assert.Empty(t, challenge.Token)

	login := testutil.ValidLoginRequest("alice@example.com")
	login["token"] = enabled.BackupCodes[3]
	var loggedIn body
	testutil.AssertJSONResponse(t, env.do(t, testutil.MakeRequest(t, http.MethodPost, "/api/auth/login", login), ""), http.StatusOK, &loggedIn)
	assert.NotEmpty(t, loggedIn.Token)

	var reused body
	testutil.AssertJSONResponse(t, env.do(t, testutil.MakeRequest(t, http.MethodPost, "/api/auth/login", login), ""), http.StatusUnauthorized, &reused)
	assert.True(t, reused.Requires2FA)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), loggedIn.Token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"lastLogin"`)
	assert.Contains(t, rr.Body.String(), `"twoFactorEnabled":true`)
}
