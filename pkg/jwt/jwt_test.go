package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-for-unit-tests"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecret)
	require.NoError(t, err)
	return m
}

func TestNewManager_EmptySecret(t *testing.T) {
	m, err := NewManager("")
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t)

	t.Run("session round trip carries id", func(t *testing.T) {
		token, err := m.IssueSession("user-1")
		require.NoError(t, err)

		claims, ok := m.Verify(token, PurposeSession)
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, PurposeSession, claims.Purpose)
	})

	t.Run("email verification round trip", func(t *testing.T) {
		token, err := m.IssueEmailVerification("user-2")
		require.NoError(t, err)

		claims, ok := m.Verify(token, PurposeEmailVerification)
		require.True(t, ok)
		assert.Equal(t, "user-2", claims.Subject)
		assert.Empty(t, claims.UserID)
	})

	t.Run("wrong purpose is rejected", func(t *testing.T) {
		token, err := m.IssuePasswordReset("user-3")
		require.NoError(t, err)

		claims, ok := m.Verify(token, PurposeSession)
		assert.False(t, ok)
		assert.Nil(t, claims)

		_, ok = m.Verify(token, PurposeEmailVerification)
		assert.False(t, ok)
	})

	t.Run("other secret is rejected", func(t *testing.T) {
		other, err := NewManager("another-secret")
		require.NoError(t, err)
		token, err := other.IssueSession("user-4")
		require.NoError(t, err)

		_, ok := m.Verify(token, PurposeSession)
		assert.False(t, ok)
	})

	t.Run("garbage and empty tokens are rejected", func(t *testing.T) {
		_, ok := m.Verify("", PurposeSession)
		assert.False(t, ok)
		_, ok = m.Verify("not.a.token", PurposeSession)
		assert.False(t, ok)
	})
}

func TestVerify_Expiry(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	m := newTestManager(t).WithClock(func() time.Time { return current })

	token, err := m.IssuePasswordReset("user-1")
	require.NoError(t, err)

	current = base.Add(PasswordResetTTL - time.Minute)
	_, ok := m.Verify(token, PurposePasswordReset)
	assert.True(t, ok, "token should still be valid just before expiry")

	current = base.Add(PasswordResetTTL + time.Minute)
	_, ok = m.Verify(token, PurposePasswordReset)
	assert.False(t, ok, "token should be rejected after expiry")
}

func TestVerify_RejectsUnexpectedAlgorithm(t *testing.T) {
	m := newTestManager(t)

	claims := Claims{
		Purpose: PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, ok := m.Verify(token, PurposeSession)
	assert.False(t, ok)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, ok = m.Verify(none, PurposeSession)
	assert.False(t, ok)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	m := newTestManager(t)

	claims := Claims{
		Purpose:          PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, ok := m.Verify(token, PurposeSession)
	assert.False(t, ok)
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	_, ok := GetUserID(ctx)
	assert.False(t, ok)

	ctx = WithUserID(ctx, "user-1")
	id, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}
