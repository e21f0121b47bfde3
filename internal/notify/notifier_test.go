package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/messenger"
	"github.com/gosuda/shopdesk/internal/notify"
	"github.com/gosuda/shopdesk/internal/secrets"
)

// --- mocks ---

type fakeMessenger struct {
	mu     sync.Mutex
	target string
	sent   []messenger.Message
	err    error
}

func (m *fakeMessenger) Send(_ context.Context, target string, msg messenger.Message) (messenger.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.target = target
	m.sent = append(m.sent, msg)
	return "1.0", nil
}

func (m *fakeMessenger) Platform() string { return "slack" }

type memTemplates struct {
	mu        sync.Mutex
	templates map[string]*domain.NotificationTemplate
	logs      []*domain.NotificationLog
	getErr    error
	recordErr error
}

func (s *memTemplates) GetTemplateByKey(_ context.Context, tenantID uuid.UUID, key string) (*domain.NotificationTemplate, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.templates[key]
	if !ok || t.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (s *memTemplates) RecordLog(_ context.Context, l *domain.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return s.recordErr
}

func (s *memTemplates) logCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

type fakeCredentials struct {
	token string
	err   error
	names []string
}

func (c *fakeCredentials) Get(_ context.Context, _ uuid.UUID, name string) (string, error) {
	c.names = append(c.names, name)
	return c.token, c.err
}

// --- helpers ---

type fixture struct {
	tenantID  uuid.UUID
	templates *memTemplates
	creds     *fakeCredentials
	messenger *fakeMessenger
	tokens    []string
	notifier  *notify.Notifier
}

func newFixture(fallback string) *fixture {
	f := &fixture{
		tenantID:  uuid.New(),
		creds:     &fakeCredentials{token: "xoxb-tenant"},
		messenger: &fakeMessenger{},
	}
	f.templates = &memTemplates{templates: map[string]*domain.NotificationTemplate{
		"order.confirmed": {
			ID:       uuid.New(),
			TenantID: f.tenantID,
			Key:      "order.confirmed",
			Channel:  domain.ChannelSlack,
			Target:   "C-ORDERS",
			Subject:  "Order {{.number}}",
			Body:     "confirmed for {{.customer}}",
			Active:   true,
		},
	}}

	reg := notify.NewRegistry()
	reg.Register(domain.ChannelSlack, func(token string) (messenger.Messenger, error) {
		f.tokens = append(f.tokens, token)
		return f.messenger, nil
	})
	f.notifier = notify.New(f.templates, f.creds, reg, fallback)
	return f
}

var orderData = map[string]any{"number": "ORD-000007", "customer": "Ana"} //nolint:gochecknoglobals // test fixture

// --- Dispatch tests ---

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("sends with the tenant token and logs sent", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSent, entry.Status)
		assert.Equal(t, "confirmed for Ana", entry.Message)
		assert.False(t, entry.CreatedAt.IsZero())

		assert.Equal(t, []string{"xoxb-tenant"}, f.tokens)
		assert.Equal(t, []string{secrets.SlackBotToken}, f.creds.names)
		assert.Equal(t, "C-ORDERS", f.messenger.target)
		require.Len(t, f.messenger.sent, 1)
		assert.Equal(t, "Order ORD-000007", f.messenger.sent[0].Subject)

		require.Len(t, f.templates.logs, 1)
		assert.Same(t, entry, f.templates.logs[0])
	})

	t.Run("no template", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.delivered", orderData)
		require.ErrorIs(t, err, notify.ErrNoTemplate)
		assert.Nil(t, entry)
		assert.Empty(t, f.templates.logs)
	})

	t.Run("template lookup error", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")
		f.templates.getErr = errors.New("db down")

		_, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.Error(t, err)
		assert.NotErrorIs(t, err, notify.ErrNoTemplate)
	})

	t.Run("inactive template is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")
		f.templates.templates["order.confirmed"].Active = false

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSkipped, entry.Status)
		assert.Empty(t, f.messenger.sent)
		assert.Len(t, f.templates.logs, 1)
	})

	t.Run("render failure is logged as failed", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", map[string]any{"number": "x"})
		require.Error(t, err)
		assert.Equal(t, domain.NotificationFailed, entry.Status)
		assert.Contains(t, entry.Error, "customer")
		assert.Empty(t, f.messenger.sent)
	})

	t.Run("falls back to platform token", func(t *testing.T) {
		t.Parallel()
		f := newFixture("xoxb-platform")
		f.creds.token, f.creds.err = "", secrets.ErrSecretNotFound

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSent, entry.Status)
		assert.Equal(t, []string{"xoxb-platform"}, f.tokens)
	})

	t.Run("no credentials at all is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")
		f.creds.token, f.creds.err = "", secrets.ErrSecretNotFound

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSkipped, entry.Status)
		assert.Contains(t, entry.Error, "credentials")
		assert.Empty(t, f.tokens)
	})

	t.Run("credential decrypt failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture("xoxb-platform")
		f.creds.err = errors.New("cipher: message authentication failed")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.Error(t, err)
		assert.Equal(t, domain.NotificationFailed, entry.Status)
		assert.Empty(t, f.tokens, "fallback is only for missing credentials")
	})

	t.Run("send failure is logged as failed", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")
		f.messenger.err = errors.New("channel_not_found")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.Error(t, err)
		assert.Equal(t, domain.NotificationFailed, entry.Status)
		assert.Equal(t, "channel_not_found", entry.Error)
		assert.Len(t, f.templates.logs, 1)
	})

	t.Run("unregistered channel", func(t *testing.T) {
		t.Parallel()
		templates := &memTemplates{templates: map[string]*domain.NotificationTemplate{}}
		tenantID := uuid.New()
		templates.templates["x"] = &domain.NotificationTemplate{ID: uuid.New(), TenantID: tenantID, Key: "x", Channel: domain.ChannelSlack, Body: "b", Active: true}
		n := notify.New(templates, &fakeCredentials{token: "t"}, notify.NewRegistry(), "")

		entry, err := n.Dispatch(t.Context(), tenantID, "x", nil)
		require.Error(t, err)
		assert.Equal(t, domain.NotificationFailed, entry.Status)
	})

	t.Run("log write failure does not fail a sent notification", func(t *testing.T) {
		t.Parallel()
		f := newFixture("")
		f.templates.recordErr = errors.New("db down")

		entry, err := f.notifier.Dispatch(t.Context(), f.tenantID, "order.confirmed", orderData)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSent, entry.Status)
	})
}

func TestNotifyAsync(t *testing.T) {
	t.Parallel()

	f := newFixture("")
	f.notifier.NotifyAsync(f.tenantID, "order.confirmed", orderData)

	assert.Eventually(t, func() bool { return f.templates.logCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
