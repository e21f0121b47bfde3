package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type CouponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

const couponColumns = `id, tenant_id, code, kind, value, min_order_total, max_redemptions, redemptions,
	valid_from, valid_to, active, created_at, updated_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(&c.ID, &c.TenantID, &c.Code, &c.Kind, &c.Value, &c.MinOrderTotal, &c.MaxRedemptions, &c.Redemptions,
		&c.ValidFrom, &c.ValidTo, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupons (id, tenant_id, code, kind, value, min_order_total, max_redemptions, redemptions,
			valid_from, valid_to, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.TenantID, c.Code, c.Kind, c.Value, c.MinOrderTotal, c.MaxRedemptions, c.Redemptions,
		c.ValidFrom, c.ValidTo, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrapErr("couponRepo.Create", err)
	}
	return nil
}

func (r *CouponRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("couponRepo.GetByID", err)
	}
	return c, nil
}

func (r *CouponRepo) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND code = $2`,
		tenantID, domain.NormalizeCouponCode(code)))
	if err != nil {
		return nil, wrapErr("couponRepo.GetByCode", err)
	}
	return c, nil
}

func (r *CouponRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapErr("couponRepo.List", err)
	}
	defer rows.Close()

	var out []*domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("couponRepo.List: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couponRepo.List: rows: %w", err)
	}
	return out, nil
}

// Update writes everything except the redemption counter, which only order
// placement and cancellation move.
func (r *CouponRepo) Update(ctx context.Context, c *domain.Coupon) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET code = $1, kind = $2, value = $3, min_order_total = $4, max_redemptions = $5,
			valid_from = $6, valid_to = $7, active = $8, updated_at = now()
		 WHERE tenant_id = $9 AND id = $10`,
		c.Code, c.Kind, c.Value, c.MinOrderTotal, c.MaxRedemptions, c.ValidFrom, c.ValidTo, c.Active, c.TenantID, c.ID,
	)
	if err != nil {
		return wrapErr("couponRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("couponRepo.Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *CouponRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return wrapErr("couponRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("couponRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}
