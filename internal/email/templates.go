package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
	"gopkg.in/yaml.v3"
)

//go:embed templates/templates.yaml
var templateFS embed.FS

type catalogue struct {
	Templates []emailtypes.Template `yaml:"templates"`
}

// compiledTemplate holds the parsed forms of one catalogue entry.
type compiledTemplate struct {
	def     emailtypes.Template
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

// loadTemplates parses the embedded catalogue. Every TemplateType the
// service sends must be present.
func loadTemplates() (map[emailtypes.TemplateType]*compiledTemplate, error) {
	raw, err := templateFS.ReadFile("templates/templates.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read email templates: %w", err)
	}
	return parseCatalogue(raw)
}

func parseCatalogue(raw []byte) (map[emailtypes.TemplateType]*compiledTemplate, error) {
	var cat catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	compiled := make(map[emailtypes.TemplateType]*compiledTemplate, len(cat.Templates))
	for _, def := range cat.Templates {
		if err := validateTemplate(def); err != nil {
			return nil, err
		}
		var err error
		ct := &compiledTemplate{def: def}
		name := string(def.TemplateType)
		if ct.subject, err = template.New(name + "_subject").Parse(def.Subject); err != nil {
			return nil, fmt.Errorf("template %s: subject: %w", name, err)
		}
		if ct.text, err = template.New(name + "_text").Parse(def.TextContent); err != nil {
			return nil, fmt.Errorf("template %s: text: %w", name, err)
		}
		if ct.html, err = htmltemplate.New(name + "_html").Parse(def.HTMLContent); err != nil {
			return nil, fmt.Errorf("template %s: html: %w", name, err)
		}
		compiled[def.TemplateType] = ct
	}

	for _, required := range []emailtypes.TemplateType{
		emailtypes.TemplateVerification,
		emailtypes.TemplatePasswordReset,
		emailtypes.TemplateTwoFactorSetup,
		emailtypes.TemplateLoginNotification,
	} {
		if _, ok := compiled[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, required)
		}
	}
	return compiled, nil
}

// validateTemplate performs basic validation on a template
func validateTemplate(t emailtypes.Template) error {
	if t.TemplateType == "" || t.Subject == "" ||
		t.HTMLContent == "" || t.TextContent == "" {
		return fmt.Errorf("%w: %q", ErrTemplateValidation, t.Name)
	}
	return nil
}

// render produces the subject and both bodies for vars.
func (ct *compiledTemplate) render(vars map[string]interface{}) (subject, text, html string, err error) {
	var buf bytes.Buffer
	if err = ct.subject.Execute(&buf, vars); err != nil {
		return "", "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err = ct.text.Execute(&buf, vars); err != nil {
		return "", "", "", fmt.Errorf("failed to render text body: %w", err)
	}
	text = buf.String()

	buf.Reset()
	if err = ct.html.Execute(&buf, vars); err != nil {
		return "", "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	html = buf.String()
	return subject, text, html, nil
}
