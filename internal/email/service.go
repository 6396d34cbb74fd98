package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/email/providers"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

var (
	ErrTemplateNotFound   = errors.New("email template not found")
	ErrTemplateValidation = errors.New("template validation failed")
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	unknownLocation  = "Unknown"
)

// Options configures link building and delivery policy.
type Options struct {
	AppName     string
	FrontendURL string
	// Attempts is the total number of delivery attempts per message.
	Attempts  int
	BaseDelay time.Duration
}

// LoginDetails describes a successful sign-in for the notification email.
type LoginDetails struct {
	Timestamp time.Time
	IPAddress string
	Device    string
	Location  string
}

// Service renders catalogue templates and hands them to a provider with
// bounded, exponentially backed-off retries.
type Service struct {
	provider  providers.Provider
	templates map[emailtypes.TemplateType]*compiledTemplate
	opts      Options
}

// NewService creates a new email service around an initialized provider.
func NewService(provider providers.Provider, opts Options) (*Service, error) {
	if provider == nil {
		return nil, providers.ErrProviderNotConfigured
	}
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &Service{provider: provider, templates: templates, opts: opts}, nil
}

// Verify checks provider connectivity. Called once at startup.
func (s *Service) Verify(ctx context.Context) error {
	return s.provider.Verify(ctx)
}

// SendVerificationEmail mails the email verification link.
func (s *Service) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	return s.send(ctx, to, emailtypes.TemplateVerification, map[string]interface{}{
		"Name":            name,
		"VerificationURL": s.link("/verify-email", token),
	})
}

// SendPasswordResetEmail mails the password reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	return s.send(ctx, to, emailtypes.TemplatePasswordReset, map[string]interface{}{
		"Name":     name,
		"ResetURL": s.link("/reset-password", token),
	})
}

// SendTwoFactorSetupEmail mails a freshly generated set of plaintext backup codes.
func (s *Service) SendTwoFactorSetupEmail(ctx context.Context, to, name string, backupCodes []string) error {
	return s.send(ctx, to, emailtypes.TemplateTwoFactorSetup, map[string]interface{}{
		"Name":        name,
		"BackupCodes": backupCodes,
	})
}

// SendLoginNotification mails the time, address and device of a sign-in.
func (s *Service) SendLoginNotification(ctx context.Context, to, name string, details LoginDetails) error {
	location := details.Location
	if location == "" {
		location = unknownLocation
	}
	return s.send(ctx, to, emailtypes.TemplateLoginNotification, map[string]interface{}{
		"Name":      name,
		"Timestamp": details.Timestamp.UTC().Format(time.RFC1123),
		"IPAddress": details.IPAddress,
		"Device":    details.Device,
		"Location":  location,
		"ResetURL":  s.link("/reset-password", ""),
	})
}

func (s *Service) link(path, token string) string {
	u := s.opts.FrontendURL + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (s *Service) send(ctx context.Context, to string, templateType emailtypes.TemplateType, vars map[string]interface{}) error {
	tmpl, ok := s.templates[templateType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateType)
	}

	vars["AppName"] = s.opts.AppName
	subject, text, html, err := tmpl.render(vars)
	if err != nil {
		return err
	}

	data := &emailtypes.EmailData{
		To:          []string{to},
		Subject:     subject,
		TextContent: text,
		HTMLContent: html,
		Type:        templateType,
	}

	log := debug.WithFields(logrus.Fields{"template": templateType, "to": to})
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(s.opts.Attempts-1), retry.NewExponential(s.opts.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := s.provider.Send(ctx, data); err != nil {
			if isPermanent(err) {
				return err
			}
			log.WithField("attempt", attempt).WithError(err).Warn("email delivery attempt failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", templateType, err)
	}

	log.WithField("attempts", attempt).Info("email sent")
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, providers.ErrEmptyMessage) ||
		errors.Is(err, providers.ErrProviderNotConfigured)
}
