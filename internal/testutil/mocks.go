package testutil

import (
	"context"
	"sync"

	"github.com/drfintrack/fintrack-auth/internal/email"
)

// SentEmail records one call to MockMailer.
type SentEmail struct {
	Kind        string
	To          string
	Name        string
	Token       string
	BackupCodes []string
	Login       email.LoginDetails
}

// MockMailer is a mock implementation of the auth mailer
type MockMailer struct {
	mu   sync.Mutex
	sent []SentEmail

	// SendError is returned from every send when set.
	SendError error
}

// NewMockMailer creates a new mock mailer
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	return m.record(SentEmail{Kind: "verification", To: to, Name: name, Token: token})
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	return m.record(SentEmail{Kind: "password_reset", To: to, Name: name, Token: token})
}

func (m *MockMailer) SendTwoFactorSetupEmail(ctx context.Context, to, name string, backupCodes []string) error {
	return m.record(SentEmail{Kind: "two_factor_setup", To: to, Name: name, BackupCodes: append([]string(nil), backupCodes...)})
}

func (m *MockMailer) SendLoginNotification(ctx context.Context, to, name string, details email.LoginDetails) error {
	return m.record(SentEmail{Kind: "login_notification", To: to, Name: name, Login: details})
}

func (m *MockMailer) record(e SentEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.SendError
}

// Sent returns every recorded email, including failed attempts.
func (m *MockMailer) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}

// SentOfKind filters Sent by kind.
func (m *MockMailer) SentOfKind(kind string) []SentEmail {
	var out []SentEmail
	for _, e := range m.Sent() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent email of kind.
func (m *MockMailer) Last(kind string) (SentEmail, bool) {
	sent := m.SentOfKind(kind)
	if len(sent) == 0 {
		return SentEmail{}, false
	}
	return sent[len(sent)-1], true
}

// SetSendError sets the error returned by subsequent sends
func (m *MockMailer) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendError = err
}

// Reset clears recorded emails and the send error
func (m *MockMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.SendError = nil
}
