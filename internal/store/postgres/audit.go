package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

const auditColumns = `id, tenant_id, actor_type, actor_id, action, resource, resource_id, details, created_at`

// AuditRepo is append-only: rows are never updated or deleted by the app.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	// NULL rather than '{}' for entries without details.
	var details []byte
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("auditRepo.Record: details: %w", err)
		}
		details = b
	}

	if _, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.TenantID, entry.ActorType, entry.ActorID, entry.Action,
		entry.Resource, entry.ResourceID, details, entry.CreatedAt,
	); err != nil {
		return wrapErr("auditRepo.Record", err)
	}
	return nil
}

// ListByTenant pages through a shop's trail, newest first.
func (r *AuditRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return r.query(ctx, "auditRepo.ListByTenant",
		`SELECT `+auditColumns+` FROM audit_log
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, pageLimit(limit), offset)
}

// ListByResource returns the full history of one record, e.g. an order.
func (r *AuditRepo) ListByResource(ctx context.Context, tenantID uuid.UUID, resource string, resourceID uuid.UUID) ([]*domain.AuditEntry, error) {
	return r.query(ctx, "auditRepo.ListByResource",
		`SELECT `+auditColumns+` FROM audit_log
		 WHERE tenant_id = $1 AND resource = $2 AND resource_id = $3
		 ORDER BY created_at DESC`,
		tenantID, resource, resourceID)
}

func (r *AuditRepo) query(ctx context.Context, op, sql string, args ...any) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (*domain.AuditEntry, error) {
	var (
		e       domain.AuditEntry
		details []byte
	)
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.ActorType, &e.ActorID, &e.Action,
		&e.Resource, &e.ResourceID, &details, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if details != nil {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("details: %w", err)
		}
	}
	return &e, nil
}
