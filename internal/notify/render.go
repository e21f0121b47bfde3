package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/messenger"
)

func parse(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Parse(text)
}

// ValidateTemplate checks that subject and body parse.
func ValidateTemplate(t *domain.NotificationTemplate) error {
	if strings.TrimSpace(t.Key) == "" {
		return domain.Invalid("key", "is required")
	}
	if strings.TrimSpace(t.Body) == "" {
		return domain.Invalid("body", "is required")
	}
	if t.Channel != domain.ChannelSlack {
		return domain.Invalid("channel", "unsupported channel "+t.Channel)
	}
	if _, err := parse("subject", t.Subject); err != nil {
		return domain.Invalid("subject", err.Error())
	}
	if _, err := parse("body", t.Body); err != nil {
		return domain.Invalid("body", err.Error())
	}
	return nil
}

// Render executes the template's subject and body against data. A reference to
// a key missing from data is an error rather than "<no value>".
func Render(t *domain.NotificationTemplate, data map[string]any) (messenger.Message, error) {
	subject, err := execute("subject", t.Subject, data)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("notify.Render: %w", err)
	}
	body, err := execute("body", t.Body, data)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("notify.Render: %w", err)
	}
	return messenger.Message{Subject: subject, Body: body}, nil
}

func execute(name, text string, data map[string]any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := parse(name, text)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.String(), nil
}
