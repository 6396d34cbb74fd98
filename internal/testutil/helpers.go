package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/mfa"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/drfintrack/fintrack-auth/pkg/password"
)

// NewTokenManager returns a token manager signed with TestJWTSecret
func NewTokenManager(t *testing.T) *jwt.Manager {
	t.Helper()

	tokens, err := jwt.NewManager(TestJWTSecret)
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}
	return tokens
}

// CreateTestUser stores a user with a bcrypt hash of plainPassword
func CreateTestUser(t *testing.T, store *MemoryStore, name, email, plainPassword string, verified bool) *models.User {
	t.Helper()

	hash, err := password.Hash(plainPassword)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := models.NewUser(name, email, hash)
	user.IsEmailVerified = verified
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// MakeRequest creates a basic HTTP request
func MakeRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			bodyReader = bytes.NewReader([]byte(raw))
		} else {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("Failed to marshal request body: %v", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MakeAuthenticatedRequest creates an HTTP request carrying a session token
// for userID in the Authorization header
func MakeAuthenticatedRequest(t *testing.T, tokens *jwt.Manager, method, url string, body interface{}, userID string) *http.Request {
	t.Helper()

	req := MakeRequest(t, method, url, body)
	token, err := tokens.IssueSession(userID)
	if err != nil {
		t.Fatalf("Failed to generate auth token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// AssertJSONResponse checks that the response has the expected status and decodes JSON
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, v interface{}) {
	t.Helper()

	if rr.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d. Body: %s", expectedStatus, rr.Code, rr.Body.String())
	}

	if v != nil && rr.Body.Len() > 0 {
		if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(v); err != nil {
			t.Errorf("Failed to decode JSON response: %v. Body: %s", err, rr.Body.String())
		}
	}
}

// GenerateTOTPCode generates the current code for a base32 secret
func GenerateTOTPCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := mfa.NewTOTP("FinTrack").CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("Failed to generate TOTP code: %v", err)
	}
	return code
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("Timeout waiting for condition: %s", message)
}
