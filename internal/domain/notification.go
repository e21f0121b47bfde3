package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const ChannelSlack = "slack"

type NotificationTemplate struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Key       string    `json:"key"` // event key, e.g. "order.confirmed"
	Channel   string    `json:"channel"`
	Target    string    `json:"target"` // channel or user id on the messenger platform
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

type NotificationLog struct {
	ID         uuid.UUID          `json:"id"`
	TenantID   uuid.UUID          `json:"tenant_id"`
	TemplateID *uuid.UUID         `json:"template_id,omitempty"`
	Key        string             `json:"key"`
	Channel    string             `json:"channel"`
	Target     string             `json:"target"`
	Status     NotificationStatus `json:"status"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

type NotificationRepository interface {
	CreateTemplate(ctx context.Context, t *NotificationTemplate) error
	GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (*NotificationTemplate, error)
	GetTemplateByKey(ctx context.Context, tenantID uuid.UUID, key string) (*NotificationTemplate, error)
	ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]*NotificationTemplate, error)
	UpdateTemplate(ctx context.Context, t *NotificationTemplate) error
	DeleteTemplate(ctx context.Context, tenantID, id uuid.UUID) error

	RecordLog(ctx context.Context, l *NotificationLog) error
	ListLogs(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*NotificationLog, error)
}
