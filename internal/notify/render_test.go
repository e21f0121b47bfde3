package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/notify"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tmpl := &domain.NotificationTemplate{
		Key:     "order.confirmed",
		Channel: domain.ChannelSlack,
		Subject: "Order {{.number}}",
		Body:    "{{.customer}} ordered {{len .items}} items, total {{.total}}",
	}

	t.Run("renders subject and body", func(t *testing.T) {
		t.Parallel()

		msg, err := notify.Render(tmpl, map[string]any{
			"number":   "ORD-000042",
			"customer": "Ana",
			"items":    []string{"tea", "cake"},
			"total":    "14.32",
		})
		require.NoError(t, err)
		assert.Equal(t, "Order ORD-000042", msg.Subject)
		assert.Equal(t, "Ana ordered 2 items, total 14.32", msg.Body)
	})

	t.Run("missing key is an error", func(t *testing.T) {
		t.Parallel()

		_, err := notify.Render(tmpl, map[string]any{"number": "ORD-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "execute body")
	})

	t.Run("empty subject renders empty", func(t *testing.T) {
		t.Parallel()

		msg, err := notify.Render(&domain.NotificationTemplate{Body: "hi {{.name}}"}, map[string]any{"name": "Bo"})
		require.NoError(t, err)
		assert.Empty(t, msg.Subject)
		assert.Equal(t, "hi Bo", msg.Body)
	})
}

func TestValidateTemplate(t *testing.T) {
	t.Parallel()

	valid := func() *domain.NotificationTemplate {
		return &domain.NotificationTemplate{Key: "order.delivered", Channel: domain.ChannelSlack, Body: "done {{.number}}"}
	}

	tests := []struct {
		name   string
		mutate func(*domain.NotificationTemplate)
		field  string
	}{
		{"valid", func(*domain.NotificationTemplate) {}, ""},
		{"missing key", func(t *domain.NotificationTemplate) { t.Key = " " }, "key"},
		{"missing body", func(t *domain.NotificationTemplate) { t.Body = "" }, "body"},
		{"unknown channel", func(t *domain.NotificationTemplate) { t.Channel = "fax" }, "channel"},
		{"bad subject", func(t *domain.NotificationTemplate) { t.Subject = "{{.x" }, "subject"},
		{"bad body", func(t *domain.NotificationTemplate) { t.Body = "{{if}}" }, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl := valid()
			tt.mutate(tmpl)
			err := notify.ValidateTemplate(tmpl)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrValidation)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
