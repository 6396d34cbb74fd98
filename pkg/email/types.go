package email

// ProviderType represents supported email providers
type ProviderType string

const (
	ProviderMailgun  ProviderType = "mailgun"
	ProviderSendGrid ProviderType = "sendgrid"
	ProviderSMTP     ProviderType = "smtp"
	// ProviderLog writes messages to the application log instead of sending
	// them. Intended for local development.
	ProviderLog ProviderType = "log"
)

// TemplateType represents different types of email templates
type TemplateType string

const (
	TemplateVerification      TemplateType = "verification"
	TemplatePasswordReset     TemplateType = "password_reset"
	TemplateTwoFactorSetup    TemplateType = "two_factor_setup"
	TemplateLoginNotification TemplateType = "login_notification"
)

// Config represents email provider configuration
type Config struct {
	ProviderType ProviderType `json:"provider_type"`
	APIKey       string       `json:"-"`
	FromName     string       `json:"from_name"`
	FromAddress  string       `json:"from_address"`

	// Mailgun
	Domain string `json:"domain,omitempty"`

	// SMTP
	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"-"`
}

// Template represents an email template
type Template struct {
	TemplateType TemplateType `yaml:"type"`
	Name         string       `yaml:"name"`
	Subject      string       `yaml:"subject"`
	HTMLContent  string       `yaml:"html"`
	TextContent  string       `yaml:"text"`
}

// EmailData represents a rendered message ready for a provider
type EmailData struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"-"`
	TextContent string       `json:"-"`
	Type        TemplateType `json:"type"`
}
