package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose scopes a token to the flow it was issued for.
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

const (
	SessionTTL           = 30 * 24 * time.Hour
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
)

// ErrEmptySecret is returned by NewManager when no signing secret is given.
var ErrEmptySecret = errors.New("jwt signing secret is empty")

// Claims is the signed claim set carried by every token.
type Claims struct {
	// UserID duplicates the subject on session tokens only.
	UserID  string  `json:"id,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens with a shared secret.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager creates a token manager for the given secret.
func NewManager(secret string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{secret: []byte(secret), now: time.Now}, nil
}

// WithClock returns a copy of m that reads time from now. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{secret: m.secret, now: now}
}

// Issue signs a token for subjectID valid for ttl.
func (m *Manager) Issue(subjectID string, purpose Purpose, ttl time.Duration) (string, error) {
	issuedAt := m.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	if purpose == PurposeSession {
		claims.UserID = subjectID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// IssueSession issues a 30 day session token.
func (m *Manager) IssueSession(userID string) (string, error) {
	return m.Issue(userID, PurposeSession, SessionTTL)
}

// IssueEmailVerification issues a 24 hour email verification token.
func (m *Manager) IssueEmailVerification(userID string) (string, error) {
	return m.Issue(userID, PurposeEmailVerification, EmailVerificationTTL)
}

// IssuePasswordReset issues a 1 hour password reset token.
func (m *Manager) IssuePasswordReset(userID string) (string, error) {
	return m.Issue(userID, PurposePasswordReset, PasswordResetTTL)
}

// Verify parses tokenString and returns its claims if the signature is
// valid, the token has not expired and it was issued for expected. Any
// failure yields (nil, false); the cause is deliberately not reported.
func (m *Manager) Verify(tokenString string, expected Purpose) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.Purpose != expected || claims.Subject == "" {
		return nil, false
	}
	return claims, true
}
