package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	gomail "github.com/wneessen/go-mail"
)

const defaultSMTPPort = 587

// smtpProvider delivers mail through a plain SMTP relay (Gmail, SES SMTP, ...).
type smtpProvider struct {
	host     string
	port     int
	username string
	password string
	fromName string
	fromAddr string
}

func init() {
	Register(emailtypes.ProviderSMTP, func() Provider {
		return &smtpProvider{}
	})
}

// ValidateConfig validates the SMTP configuration
func (p *smtpProvider) ValidateConfig(cfg *emailtypes.Config) error {
	if cfg.SMTPHost == "" {
		return errors.New("smtp host is required")
	}
	if cfg.SMTPUsername != "" && cfg.SMTPPassword == "" {
		return errors.New("smtp password is required when a username is set")
	}
	return requireSender("smtp", cfg)
}

// Initialize stores the relay settings; connections are opened per send.
func (p *smtpProvider) Initialize(cfg *emailtypes.Config) error {
	if cfg.SMTPHost == "" {
		return ErrProviderNotConfigured
	}
	p.host = cfg.SMTPHost
	p.port = cfg.SMTPPort
	if p.port == 0 {
		p.port = defaultSMTPPort
	}
	p.username = cfg.SMTPUsername
	p.password = cfg.SMTPPassword
	p.fromName = cfg.FromName
	p.fromAddr = cfg.FromAddress
	debug.Info("initialized smtp relay %s:%d", p.host, p.port)
	return nil
}

func (p *smtpProvider) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(p.port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if p.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(p.username),
			gomail.WithPassword(p.password),
		)
	}
	return gomail.NewClient(p.host, opts...)
}

// Send sends an email over SMTP
func (p *smtpProvider) Send(ctx context.Context, data *emailtypes.EmailData) error {
	if p.host == "" {
		return ErrProviderNotConfigured
	}
	if err := checkMessage(data); err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(p.fromName, p.fromAddr); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(data.To...); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(data.Subject)

	switch {
	case data.TextContent != "" && data.HTMLContent != "":
		msg.SetBodyString(gomail.TypeTextPlain, data.TextContent)
		msg.AddAlternativeString(gomail.TypeTextHTML, data.HTMLContent)
	case data.HTMLContent != "":
		msg.SetBodyString(gomail.TypeTextHTML, data.HTMLContent)
	default:
		msg.SetBodyString(gomail.TypeTextPlain, data.TextContent)
	}

	c, err := p.client()
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// Verify dials and authenticates against the relay without sending.
func (p *smtpProvider) Verify(ctx context.Context) error {
	if p.host == "" {
		return ErrProviderNotConfigured
	}
	c, err := p.client()
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp connection check failed: %w", err)
	}
	return c.Close()
}
