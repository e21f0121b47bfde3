package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/notify"
	"github.com/gosuda/shopdesk/internal/secrets"
)

type TemplateBody struct {
	Key     string `json:"key" minLength:"1" maxLength:"100" doc:"Event key, e.g. order.confirmed"`
	Channel string `json:"channel,omitempty" enum:"slack" doc:"Delivery channel; slack when omitted"`
	Target  string `json:"target" minLength:"1" maxLength:"255" doc:"Slack channel or user ID"`
	Subject string `json:"subject,omitempty" maxLength:"255" doc:"Go text/template"`
	Body    string `json:"body" minLength:"1" doc:"Go text/template; unknown fields fail rendering"`
	Active  *bool  `json:"active,omitempty" doc:"Defaults to true"`
}

type CreateTemplateInput struct {
	Body TemplateBody
}

type UpdateTemplateInput struct {
	ID   uuid.UUID `path:"id" doc:"Template ID"`
	Body TemplateBody
}

type TemplateIDInput struct {
	ID uuid.UUID `path:"id" doc:"Template ID"`
}

type TemplateOutput struct {
	Body *domain.NotificationTemplate
}

type ListTemplatesOutput struct {
	Body []*domain.NotificationTemplate
}

type ListNotificationLogsInput struct {
	Page
}

type ListNotificationLogsOutput struct {
	Body []*domain.NotificationLog
}

type TestNotificationInput struct {
	Body struct {
		Key  string         `json:"key" minLength:"1" doc:"Event key of the template to send"`
		Data map[string]any `json:"data,omitempty" doc:"Template data"`
	}
}

type NotificationLogOutput struct {
	Body *domain.NotificationLog
}

type SlackTokenInput struct {
	Body struct {
		Token string `json:"token" minLength:"1" doc:"Slack bot token (xoxb-...)"` //nolint:gosec // G117: credential DTO
	}
}

type IntegrationsOutput struct {
	Body struct {
		Configured []string `json:"configured" doc:"Names of stored credentials"`
	}
}

func RegisterNotificationRoutes(api huma.API, store DataStore, plans PlanEnforcer, notifier Notifier, vault SecretStore) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-notification-template",
		Method:        http.MethodPost,
		Path:          "/notification-templates",
		Summary:       "Create a notification template",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTemplateInput) (*TemplateOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if err := plans.RequireFeature(ctx, tenantID, domain.FeatureNotifications); err != nil {
			return nil, apiError(ctx, err, "template")
		}

		now := time.Now()
		t := &domain.NotificationTemplate{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyTemplateBody(t, &input.Body)
		if err := notify.ValidateTemplate(t); err != nil {
			return nil, apiError(ctx, err, "template")
		}

		if err := store.Notifications().CreateTemplate(ctx, t); err != nil {
			return nil, apiError(ctx, err, "template")
		}
		recordAudit(ctx, store, tenantID, "notification_template.created", "notification_template", t.ID, map[string]any{"key": t.Key})
		return &TemplateOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notification-templates",
		Method:      http.MethodGet,
		Path:        "/notification-templates",
		Summary:     "List notification templates",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *struct{}) (*ListTemplatesOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		ts, err := store.Notifications().ListTemplates(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "templates")
		}
		return &ListTemplatesOutput{Body: ts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-notification-template",
		Method:      http.MethodGet,
		Path:        "/notification-templates/{id}",
		Summary:     "Get a notification template",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *TemplateIDInput) (*TemplateOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		t, err := store.Notifications().GetTemplate(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "template")
		}
		return &TemplateOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-notification-template",
		Method:      http.MethodPut,
		Path:        "/notification-templates/{id}",
		Summary:     "Update a notification template",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *UpdateTemplateInput) (*TemplateOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		t, err := store.Notifications().GetTemplate(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "template")
		}
		applyTemplateBody(t, &input.Body)
		t.UpdatedAt = time.Now()
		if err := notify.ValidateTemplate(t); err != nil {
			return nil, apiError(ctx, err, "template")
		}

		if err := store.Notifications().UpdateTemplate(ctx, t); err != nil {
			return nil, apiError(ctx, err, "template")
		}
		recordAudit(ctx, store, tenantID, "notification_template.updated", "notification_template", t.ID, nil)
		return &TemplateOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification-template",
		Method:      http.MethodDelete,
		Path:        "/notification-templates/{id}",
		Summary:     "Delete a notification template",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *TemplateIDInput) (*struct{}, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Notifications().DeleteTemplate(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "template")
		}
		recordAudit(ctx, store, tenantID, "notification_template.deleted", "notification_template", input.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notification-logs",
		Method:      http.MethodGet,
		Path:        "/notification-logs",
		Summary:     "List notification attempts, newest first",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationLogsInput) (*ListNotificationLogsOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		logs, err := store.Notifications().ListLogs(ctx, tenantID, input.Limit, input.Offset)
		if err != nil {
			return nil, apiError(ctx, err, "notification logs")
		}
		return &ListNotificationLogsOutput{Body: logs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-test-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/test",
		Summary:     "Send a template now with sample data",
		Description: "Returns the log entry. A failed send answers 200 with status failed and the error.",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *TestNotificationInput) (*NotificationLogOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		entry, err := notifier.Dispatch(ctx, tenantID, input.Body.Key, input.Body.Data)
		if entry != nil {
			return &NotificationLogOutput{Body: entry}, nil
		}
		if errors.Is(err, notify.ErrNoTemplate) {
			return nil, huma.Error404NotFound("no template for " + input.Body.Key)
		}
		return nil, apiError(ctx, err, "notification")
	})

	// Credential routes need SHOPDESK_ENCRYPTION_KEY.
	if vault == nil {
		return
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-integrations",
		Method:      http.MethodGet,
		Path:        "/integrations",
		Summary:     "List configured integration credentials",
		Tags:        []string{"Notifications", "Integrations"},
	}, func(ctx context.Context, _ *struct{}) (*IntegrationsOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		names, err := vault.Names(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "integrations")
		}
		out := &IntegrationsOutput{}
		out.Body.Configured = names
		if out.Body.Configured == nil {
			out.Body.Configured = []string{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-slack-token",
		Method:      http.MethodPut,
		Path:        "/integrations/slack",
		Summary:     "Store the shop's Slack bot token",
		Description: "The token is encrypted at rest and never returned.",
		Tags:        []string{"Notifications", "Integrations"},
	}, func(ctx context.Context, input *SlackTokenInput) (*struct{}, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if err := plans.RequireFeature(ctx, tenantID, domain.FeatureNotifications); err != nil {
			return nil, apiError(ctx, err, "integration")
		}

		token := strings.TrimSpace(input.Body.Token)
		if !strings.HasPrefix(token, "xoxb-") {
			return nil, huma.Error422UnprocessableEntity("token must be a Slack bot token (xoxb-...)")
		}
		if err := vault.Put(ctx, tenantID, secrets.SlackBotToken, token); err != nil {
			return nil, apiError(ctx, err, "integration")
		}
		recordAudit(ctx, store, tenantID, "integration.slack_set", "integration", tenantID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-slack-token",
		Method:      http.MethodDelete,
		Path:        "/integrations/slack",
		Summary:     "Remove the shop's Slack bot token",
		Tags:        []string{"Notifications", "Integrations"},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		if err := vault.Delete(ctx, tenantID, secrets.SlackBotToken); err != nil {
			if errors.Is(err, secrets.ErrSecretNotFound) {
				return nil, huma.Error404NotFound("slack is not configured")
			}
			return nil, apiError(ctx, err, "integration")
		}
		recordAudit(ctx, store, tenantID, "integration.slack_removed", "integration", tenantID, nil)
		return nil, nil
	})
}

func applyTemplateBody(t *domain.NotificationTemplate, b *TemplateBody) {
	t.Key = strings.TrimSpace(b.Key)
	t.Channel = b.Channel
	if t.Channel == "" {
		t.Channel = domain.ChannelSlack
	}
	t.Target = strings.TrimSpace(b.Target)
	t.Subject = b.Subject
	t.Body = b.Body
	if b.Active != nil {
		t.Active = *b.Active
	}
}
