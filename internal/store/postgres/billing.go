package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type BillingRepo struct {
	pool *pgxpool.Pool
}

func NewBillingRepo(pool *pgxpool.Pool) *BillingRepo {
	return &BillingRepo{pool: pool}
}

const planColumns = `code, name, monthly_fee, per_order_fee, max_products, max_couriers, features, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	err := row.Scan(&p.Code, &p.Name, &p.MonthlyFee, &p.PerOrderFee, &p.MaxProducts, &p.MaxCouriers, &p.Features, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BillingRepo) UpsertPlan(ctx context.Context, p *domain.Plan) error {
	if p.Features == nil {
		p.Features = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO plans (code, name, monthly_fee, per_order_fee, max_products, max_couriers, features, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, monthly_fee = EXCLUDED.monthly_fee,
			per_order_fee = EXCLUDED.per_order_fee, max_products = EXCLUDED.max_products,
			max_couriers = EXCLUDED.max_couriers, features = EXCLUDED.features, updated_at = now()`,
		p.Code, p.Name, p.MonthlyFee, p.PerOrderFee, p.MaxProducts, p.MaxCouriers, p.Features,
	)
	if err != nil {
		return wrapErr("billingRepo.UpsertPlan", err)
	}
	return nil
}

func (r *BillingRepo) GetPlan(ctx context.Context, code string) (*domain.Plan, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE code = $1`, code))
	if err != nil {
		return nil, wrapErr("billingRepo.GetPlan", err)
	}
	return p, nil
}

func (r *BillingRepo) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY monthly_fee, code`)
	if err != nil {
		return nil, wrapErr("billingRepo.ListPlans", err)
	}
	defer rows.Close()

	var out []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("billingRepo.ListPlans: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billingRepo.ListPlans: rows: %w", err)
	}
	return out, nil
}

const invoiceColumns = `id, tenant_id, plan_code, period_start, period_end, order_count, monthly_fee, usage_fee,
	total, status, paid_at, created_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.PlanCode, &inv.PeriodStart, &inv.PeriodEnd, &inv.OrderCount,
		&inv.MonthlyFee, &inv.UsageFee, &inv.Total, &inv.Status, &inv.PaidAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *BillingRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO invoices (id, tenant_id, plan_code, period_start, period_end, order_count, monthly_fee, usage_fee,
			total, status, paid_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.TenantID, inv.PlanCode, inv.PeriodStart, inv.PeriodEnd, inv.OrderCount, inv.MonthlyFee, inv.UsageFee,
		inv.Total, inv.Status, inv.PaidAt, inv.CreatedAt,
	)
	if err != nil {
		return wrapErr("billingRepo.CreateInvoice", err)
	}
	return nil
}

func (r *BillingRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("billingRepo.GetInvoice", err)
	}
	return inv, nil
}

func (r *BillingRepo) ListInvoices(ctx context.Context, tenantID uuid.UUID) ([]*domain.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 ORDER BY period_start DESC`, tenantID)
	if err != nil {
		return nil, wrapErr("billingRepo.ListInvoices", err)
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("billingRepo.ListInvoices: scan: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billingRepo.ListInvoices: rows: %w", err)
	}
	return out, nil
}

// SetInvoiceStatus moves an invoice from one status to another. Marking paid
// stamps paid_at with at.
func (r *BillingRepo) SetInvoiceStatus(ctx context.Context, id uuid.UUID, from, to domain.InvoiceStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $1, paid_at = CASE WHEN $1 = 'paid' THEN $2 ELSE paid_at END
		 WHERE id = $3 AND status = $4`,
		to, at, id, from,
	)
	if err != nil {
		return wrapErr("billingRepo.SetInvoiceStatus", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id)
		return fmt.Errorf("billingRepo.SetInvoiceStatus: %w", err)
	}
	return nil
}
