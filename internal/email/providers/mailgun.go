package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/mailgun/mailgun-go/v4"
)

// mailgunProvider implements the Provider interface for Mailgun
type mailgunProvider struct {
	mg   *mailgun.MailgunImpl
	from string
}

func init() {
	Register(emailtypes.ProviderMailgun, func() Provider {
		return &mailgunProvider{}
	})
}

// ValidateConfig validates the Mailgun configuration
func (p *mailgunProvider) ValidateConfig(cfg *emailtypes.Config) error {
	if cfg.APIKey == "" {
		return errors.New("mailgun API key is required")
	}
	if cfg.Domain == "" {
		return errors.New("mailgun domain is required")
	}
	return requireSender("mailgun", cfg)
}

// Initialize sets up the Mailgun client
func (p *mailgunProvider) Initialize(cfg *emailtypes.Config) error {
	if cfg.APIKey == "" || cfg.Domain == "" {
		return ErrProviderNotConfigured
	}
	p.mg = mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	p.from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	debug.Info("initialized mailgun client for domain: %s", cfg.Domain)
	return nil
}

// Send sends an email using Mailgun
func (p *mailgunProvider) Send(ctx context.Context, data *emailtypes.EmailData) error {
	if p.mg == nil {
		return ErrProviderNotConfigured
	}
	if err := checkMessage(data); err != nil {
		return err
	}

	message := p.mg.NewMessage(p.from, data.Subject, data.TextContent, data.To...)
	if data.HTMLContent != "" {
		message.SetHtml(data.HTMLContent)
	}

	_, id, err := p.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send failed: %w", err)
	}

	debug.Debug("mailgun accepted message %s", id)
	return nil
}

// Verify only checks that the client was initialized; Mailgun has no
// side-effect free endpoint for checking send permission.
func (p *mailgunProvider) Verify(ctx context.Context) error {
	if p.mg == nil {
		return ErrProviderNotConfigured
	}
	return nil
}
