package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

// AnalyticsRepo runs the read-only aggregate queries behind the dashboard.
type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

func (r *AnalyticsRepo) OrdersByStatus(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[domain.OrderStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, count(*) FROM orders
		 WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		 GROUP BY status`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, wrapErr("analyticsRepo.OrdersByStatus", err)
	}
	defer rows.Close()

	out := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for _, s := range domain.OrderStatuses {
		out[s] = 0
	}
	for rows.Next() {
		var s domain.OrderStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("analyticsRepo.OrdersByStatus: scan: %w", err)
		}
		out[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsRepo.OrdersByStatus: rows: %w", err)
	}
	return out, nil
}

// RevenueByDay sums delivered order totals per UTC day.
func (r *AnalyticsRepo) RevenueByDay(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.DailyRevenue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, count(*), COALESCE(sum(total), 0)
		 FROM orders
		 WHERE tenant_id = $1 AND status = 'delivered' AND created_at >= $2 AND created_at < $3
		 GROUP BY day ORDER BY day`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, wrapErr("analyticsRepo.RevenueByDay", err)
	}
	defer rows.Close()

	out := []domain.DailyRevenue{}
	for rows.Next() {
		var d domain.DailyRevenue
		if err := rows.Scan(&d.Day, &d.Orders, &d.Revenue); err != nil {
			return nil, fmt.Errorf("analyticsRepo.RevenueByDay: scan: %w", err)
		}
		d.Day = d.Day.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsRepo.RevenueByDay: rows: %w", err)
	}
	return out, nil
}

// TopProducts ranks products by quantity sold on non-cancelled orders.
func (r *AnalyticsRepo) TopProducts(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]domain.ProductSales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.product_id, min(i.name), sum(i.quantity), sum(i.line_total)
		 FROM order_items i JOIN orders o ON o.id = i.order_id
		 WHERE o.tenant_id = $1 AND o.status <> 'cancelled' AND o.created_at >= $2 AND o.created_at < $3
		 GROUP BY i.product_id
		 ORDER BY sum(i.quantity) DESC, sum(i.line_total) DESC
		 LIMIT $4`,
		tenantID, from, to, limit,
	)
	if err != nil {
		return nil, wrapErr("analyticsRepo.TopProducts", err)
	}
	defer rows.Close()

	out := []domain.ProductSales{}
	for rows.Next() {
		var p domain.ProductSales
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Quantity, &p.Revenue); err != nil {
			return nil, fmt.Errorf("analyticsRepo.TopProducts: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsRepo.TopProducts: rows: %w", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) LowStockCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE tenant_id = $1 AND active AND stock_quantity <= low_stock_threshold`,
		tenantID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("analyticsRepo.LowStockCount", err)
	}
	return n, nil
}

// ActiveCouriers counts couriers that are on shift: available or busy.
func (r *AnalyticsRepo) ActiveCouriers(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM couriers WHERE tenant_id = $1 AND active AND status IN ('available', 'busy')`,
		tenantID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("analyticsRepo.ActiveCouriers", err)
	}
	return n, nil
}
