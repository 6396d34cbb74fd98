package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// sendgridProvider implements the Provider interface for SendGrid
type sendgridProvider struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func init() {
	Register(emailtypes.ProviderSendGrid, func() Provider {
		return &sendgridProvider{}
	})
}

// ValidateConfig validates the SendGrid configuration
func (p *sendgridProvider) ValidateConfig(cfg *emailtypes.Config) error {
	if cfg.APIKey == "" {
		return errors.New("sendgrid API key is required")
	}
	return requireSender("sendgrid", cfg)
}

// Initialize sets up the SendGrid client
func (p *sendgridProvider) Initialize(cfg *emailtypes.Config) error {
	if cfg.APIKey == "" {
		return ErrProviderNotConfigured
	}
	p.client = sendgrid.NewSendClient(cfg.APIKey)
	p.fromEmail = cfg.FromAddress
	p.fromName = cfg.FromName
	debug.Info("initialized sendgrid client with from: %s <%s>", p.fromName, p.fromEmail)
	return nil
}

// Send sends an email using SendGrid
func (p *sendgridProvider) Send(ctx context.Context, data *emailtypes.EmailData) error {
	if p.client == nil {
		return ErrProviderNotConfigured
	}
	if err := checkMessage(data); err != nil {
		return err
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(p.fromName, p.fromEmail))
	message.Subject = data.Subject

	personalization := mail.NewPersonalization()
	for _, to := range data.To {
		personalization.AddTos(mail.NewEmail("", to))
	}
	message.AddPersonalizations(personalization)

	// text/plain must precede text/html in the V3 API
	if data.TextContent != "" {
		message.AddContent(mail.NewContent("text/plain", data.TextContent))
	}
	if data.HTMLContent != "" {
		message.AddContent(mail.NewContent("text/html", data.HTMLContent))
	}

	response, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid API error: %d - %s", response.StatusCode, response.Body)
	}

	debug.Debug("sendgrid accepted message with status code: %d", response.StatusCode)
	return nil
}

// Verify checks that the client was initialized.
func (p *sendgridProvider) Verify(ctx context.Context) error {
	if p.client == nil {
		return ErrProviderNotConfigured
	}
	return nil
}
