package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/secrets"
)

// ErrNoTemplate is returned when the tenant has no template for an event key.
var ErrNoTemplate = errors.New("notify: no template for event") //nolint:gochecknoglobals // sentinel error

// TemplateStore is the part of domain.NotificationRepository the notifier needs.
type TemplateStore interface {
	GetTemplateByKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.NotificationTemplate, error)
	RecordLog(ctx context.Context, l *domain.NotificationLog) error
}

// CredentialSource resolves a tenant's decrypted messenger token.
type CredentialSource interface {
	Get(ctx context.Context, tenantID uuid.UUID, name string) (string, error)
}

// Notifier renders tenant templates and delivers them through the registered
// messenger for the template's channel. Every attempt is logged.
type Notifier struct {
	templates     TemplateStore
	credentials   CredentialSource
	registry      *Registry
	fallbackToken string
	now           func() time.Time
}

// New creates a Notifier. fallbackToken is the platform bot token used for
// tenants that have not stored their own; empty disables the fallback.
func New(templates TemplateStore, credentials CredentialSource, registry *Registry, fallbackToken string) *Notifier {
	return &Notifier{
		templates:     templates,
		credentials:   credentials,
		registry:      registry,
		fallbackToken: fallbackToken,
		now:           time.Now,
	}
}

// Dispatch sends the tenant's template for key. The returned log entry says
// whether it was sent, skipped or failed; err is set only when nothing could
// be attempted or the attempt failed.
func (n *Notifier) Dispatch(ctx context.Context, tenantID uuid.UUID, key string, data map[string]any) (*domain.NotificationLog, error) {
	tmpl, err := n.templates.GetTemplateByKey(ctx, tenantID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("notify.Notifier.Dispatch: %q: %w", key, ErrNoTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("notify.Notifier.Dispatch: %w", err)
	}

	entry := &domain.NotificationLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		TemplateID: &tmpl.ID,
		Key:        key,
		Channel:    tmpl.Channel,
		Target:     tmpl.Target,
	}

	sendErr := n.send(ctx, tmpl, data, entry)
	entry.CreatedAt = n.now()
	if err := n.templates.RecordLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("notify: record log failed")
	}

	if sendErr != nil {
		return entry, fmt.Errorf("notify.Notifier.Dispatch: %w", sendErr)
	}
	return entry, nil
}

// send fills entry's status, message and error.
func (n *Notifier) send(ctx context.Context, tmpl *domain.NotificationTemplate, data map[string]any, entry *domain.NotificationLog) error {
	if !tmpl.Active {
		entry.Status = domain.NotificationSkipped
		entry.Error = "template inactive"
		return nil
	}

	msg, err := Render(tmpl, data)
	if err != nil {
		return failed(entry, err)
	}
	entry.Message = msg.Body

	factory, ok := n.registry.Get(tmpl.Channel)
	if !ok {
		return failed(entry, fmt.Errorf("channel %q not supported", tmpl.Channel))
	}

	token, err := n.token(ctx, tmpl.TenantID, tmpl.Channel)
	if err != nil {
		return failed(entry, err)
	}
	if token == "" {
		entry.Status = domain.NotificationSkipped
		entry.Error = "no " + tmpl.Channel + " credentials configured"
		return nil
	}

	m, err := factory(token)
	if err != nil {
		return failed(entry, err)
	}
	if _, err := m.Send(ctx, tmpl.Target, msg); err != nil {
		return failed(entry, err)
	}

	entry.Status = domain.NotificationSent
	return nil
}

func (n *Notifier) token(ctx context.Context, tenantID uuid.UUID, channel string) (string, error) {
	if channel != domain.ChannelSlack {
		return "", nil
	}
	if n.credentials == nil {
		return n.fallbackToken, nil
	}
	tok, err := n.credentials.Get(ctx, tenantID, secrets.SlackBotToken)
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return n.fallbackToken, nil
	}
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	return tok, nil
}

func failed(entry *domain.NotificationLog, err error) error {
	entry.Status = domain.NotificationFailed
	entry.Error = err.Error()
	return err
}

// NotifyAsync dispatches in the background with its own timeout, for hooks on
// request paths that must not wait on Slack. A missing template is not logged.
func (n *Notifier) NotifyAsync(tenantID uuid.UUID, key string, data map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := n.Dispatch(ctx, tenantID, key, data); err != nil && !errors.Is(err, ErrNoTemplate) {
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("notify: dispatch failed")
		}
	}()
}
