package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

const templateColumns = `id, tenant_id, key, channel, target, subject, body, active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*domain.NotificationTemplate, error) {
	var t domain.NotificationTemplate
	err := row.Scan(&t.ID, &t.TenantID, &t.Key, &t.Channel, &t.Target, &t.Subject, &t.Body, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *NotificationRepo) CreateTemplate(ctx context.Context, t *domain.NotificationTemplate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_templates (id, tenant_id, key, channel, target, subject, body, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.TenantID, t.Key, t.Channel, t.Target, t.Subject, t.Body, t.Active, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return wrapErr("notificationRepo.CreateTemplate", err)
	}
	return nil
}

func (r *NotificationRepo) GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (*domain.NotificationTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("notificationRepo.GetTemplate", err)
	}
	return t, nil
}

func (r *NotificationRepo) GetTemplateByKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.NotificationTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates WHERE tenant_id = $1 AND key = $2`, tenantID, key))
	if err != nil {
		return nil, wrapErr("notificationRepo.GetTemplateByKey", err)
	}
	return t, nil
}

func (r *NotificationRepo) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]*domain.NotificationTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM notification_templates WHERE tenant_id = $1 ORDER BY key`, tenantID)
	if err != nil {
		return nil, wrapErr("notificationRepo.ListTemplates", err)
	}
	defer rows.Close()

	var out []*domain.NotificationTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("notificationRepo.ListTemplates: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notificationRepo.ListTemplates: rows: %w", err)
	}
	return out, nil
}

func (r *NotificationRepo) UpdateTemplate(ctx context.Context, t *domain.NotificationTemplate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notification_templates SET key = $1, channel = $2, target = $3, subject = $4, body = $5,
			active = $6, updated_at = now()
		 WHERE tenant_id = $7 AND id = $8`,
		t.Key, t.Channel, t.Target, t.Subject, t.Body, t.Active, t.TenantID, t.ID,
	)
	if err != nil {
		return wrapErr("notificationRepo.UpdateTemplate", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notificationRepo.UpdateTemplate: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepo) DeleteTemplate(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notification_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return wrapErr("notificationRepo.DeleteTemplate", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notificationRepo.DeleteTemplate: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepo) RecordLog(ctx context.Context, l *domain.NotificationLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_log (id, tenant_id, template_id, key, channel, target, status, message, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.TenantID, l.TemplateID, l.Key, l.Channel, l.Target, l.Status, l.Message, l.Error, l.CreatedAt,
	)
	if err != nil {
		return wrapErr("notificationRepo.RecordLog", err)
	}
	return nil
}

func (r *NotificationRepo) ListLogs(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.NotificationLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, template_id, key, channel, target, status, message, error, created_at
		 FROM notification_log WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, pageLimit(limit), offset,
	)
	if err != nil {
		return nil, wrapErr("notificationRepo.ListLogs", err)
	}
	defer rows.Close()

	var out []*domain.NotificationLog
	for rows.Next() {
		var l domain.NotificationLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.TemplateID, &l.Key, &l.Channel, &l.Target,
			&l.Status, &l.Message, &l.Error, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("notificationRepo.ListLogs: scan: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notificationRepo.ListLogs: rows: %w", err)
	}
	return out, nil
}
