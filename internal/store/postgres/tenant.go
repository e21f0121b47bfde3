package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

const tenantColumns = `id, name, slug, plan_code, status, settings, created_at, updated_at`

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.PlanCode, &t.Status, &t.Settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	if t.Settings == nil {
		t.Settings = map[string]any{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, plan_code, status, settings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Slug, t.PlanCode, t.Status, t.Settings, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return wrapErr("tenantRepo.Create", err)
	}

	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("tenantRepo.GetByID", err)
	}

	return t, nil
}

func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if err != nil {
		return nil, wrapErr("tenantRepo.GetBySlug", err)
	}

	return t, nil
}

func (r *TenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET name = $1, slug = $2, plan_code = $3, settings = $4, updated_at = now()
		 WHERE id = $5`,
		t.Name, t.Slug, t.PlanCode, t.Settings, t.ID,
	)
	if err != nil {
		return wrapErr("tenantRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return wrapErr("tenantRepo.SetStatus", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.SetStatus: %w", domain.ErrNotFound)
	}

	return nil
}

// List returns every tenant; used by the billing and scheduling jobs.
func (r *TenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr("tenantRepo.List", err)
	}

	return collectTenants(rows, "tenantRepo.List")
}

func (r *TenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at LIMIT $1 OFFSET $2`,
		pageLimit(limit), offset,
	)
	if err != nil {
		return nil, wrapErr("tenantRepo.ListPaginated", err)
	}

	return collectTenants(rows, "tenantRepo.ListPaginated")
}

func collectTenants(rows pgx.Rows, caller string) ([]*domain.Tenant, error) {
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tenants, nil
}
