package providers

import (
	"context"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"github.com/sirupsen/logrus"
)

// logProvider writes outgoing mail to the application log. Message bodies
// are logged at debug level only since they carry links and backup codes.
type logProvider struct {
	from string
}

func init() {
	Register(emailtypes.ProviderLog, func() Provider {
		return &logProvider{}
	})
}

func (p *logProvider) ValidateConfig(cfg *emailtypes.Config) error { return nil }

func (p *logProvider) Initialize(cfg *emailtypes.Config) error {
	p.from = cfg.FromAddress
	return nil
}

func (p *logProvider) Send(ctx context.Context, data *emailtypes.EmailData) error {
	if err := checkMessage(data); err != nil {
		return err
	}
	entry := debug.WithFields(logrus.Fields{
		"from":    p.from,
		"to":      data.To,
		"subject": data.Subject,
		"type":    data.Type,
	})
	entry.Info("email captured by log provider")
	entry.Debug(data.TextContent)
	return nil
}

func (p *logProvider) Verify(ctx context.Context) error { return nil }
