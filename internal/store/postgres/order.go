package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, tenant_id, number, customer_name, customer_phone, delivery_address,
	subtotal, discount, delivery_fee, total, coupon_code, status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.CustomerName, &o.CustomerPhone, &o.DeliveryAddress,
		&o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Total, &o.CouponCode, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Place(ctx context.Context, draft *domain.OrderDraft) (*domain.Order, error) {
	o := draft.Order
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		need := domain.RequiredStock(draft.Lines)
		ids := make([]uuid.UUID, 0, len(need))
		for id := range need {
			ids = append(ids, id)
		}

		products, err := productsByID(ctx, tx, o.TenantID, ids)
		if err != nil {
			return err
		}

		var coupon *domain.Coupon
		if code := domain.NormalizeCouponCode(draft.CouponCode); code != "" {
			coupon, err = scanCoupon(tx.QueryRow(ctx,
				`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND code = $2 FOR UPDATE`,
				o.TenantID, code))
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Invalid("coupon_code", "no coupon named "+code)
			}
			if err != nil {
				return err
			}
		}

		now := time.Now()
		if err := domain.PriceOrder(o, draft.Lines, products, coupon, now); err != nil {
			return err
		}

		for id, qty := range need {
			if p := products[id]; p.StockQuantity < qty {
				return fmt.Errorf("%s: only %d in stock: %w", p.Name, p.StockQuantity, domain.ErrInsufficientStock)
			}
		}

		seq, err := nextSequence(ctx, tx, o.TenantID, "order")
		if err != nil {
			return err
		}
		o.Number = domain.OrderNumber(seq)
		o.Status = domain.OrderStatusPending
		o.CreatedAt = now
		o.UpdatedAt = now

		if _, err := tx.Exec(ctx,
			`INSERT INTO orders (id, tenant_id, number, customer_name, customer_phone, delivery_address,
				subtotal, discount, delivery_fee, total, coupon_code, status, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			o.ID, o.TenantID, o.Number, o.CustomerName, o.CustomerPhone, o.DeliveryAddress,
			o.Subtotal, o.Discount, o.DeliveryFee, o.Total, o.CouponCode, o.Status, o.Notes, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (id, order_id, position, product_id, name, unit_price, quantity, line_total)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				it.ID, o.ID, i, it.ProductID, it.Name, it.UnitPrice, it.Quantity, it.LineTotal,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		for _, it := range o.Items {
			if _, err := adjustStock(ctx, tx, o.TenantID, it.ProductID, -it.Quantity, domain.MovementSale, &o.ID, o.Number); err != nil {
				return err
			}
		}

		if coupon != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE coupons SET redemptions = redemptions + 1, updated_at = now() WHERE id = $1`, coupon.ID,
			); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, wrapErr("orderRepo.Place", err)
	}

	return o, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("orderRepo.GetByID", err)
	}

	if err := loadOrderItems(ctx, r.pool, []*domain.Order{o}); err != nil {
		return nil, fmt.Errorf("orderRepo.GetByID: %w", err)
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, tenantID uuid.UUID, f domain.OrderFilter) ([]*domain.Order, error) {
	var sb strings.Builder
	args := []any{tenantID}
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1`)

	if f.Status != "" {
		args = append(args, f.Status)
		sb.WriteString(` AND status = $` + strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		sb.WriteString(` AND created_at >= $` + strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		sb.WriteString(` AND created_at < $` + strconv.Itoa(len(args)))
	}
	args = append(args, pageLimit(f.Limit), f.Offset)
	sb.WriteString(` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapErr("orderRepo.List", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orderRepo.List: scan: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orderRepo.List: rows: %w", err)
	}

	if err := loadOrderItems(ctx, r.pool, orders); err != nil {
		return nil, fmt.Errorf("orderRepo.List: %w", err)
	}
	return orders, nil
}

func loadOrderItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, name, unit_price, quantity, line_total
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return fmt.Errorf("items: scan: %w", err)
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// UpdateStatus is a compare-and-set on the status column. A stale from
// reports ErrConflict. Cancelling returns stock and the coupon redemption.
func (r *OrderRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to domain.OrderStatus) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return setOrderStatus(ctx, tx, tenantID, id, from, to)
	})
	if err != nil {
		return wrapErr("orderRepo.UpdateStatus", err)
	}
	return nil
}

func setOrderStatus(ctx context.Context, tx pgx.Tx, tenantID, id uuid.UUID, from, to domain.OrderStatus) error {
	var number, couponCode string
	err := tx.QueryRow(ctx,
		`UPDATE orders SET status = $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3 AND status = $4
		 RETURNING number, coupon_code`,
		to, tenantID, id, from,
	).Scan(&number, &couponCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return staleOrMissing(ctx, tx, `SELECT EXISTS (SELECT 1 FROM orders WHERE tenant_id = $1 AND id = $2)`, tenantID, id)
	}
	if err != nil {
		return err
	}

	if to == domain.OrderStatusCancelled {
		if err := abandonDeliveries(ctx, tx, tenantID, id); err != nil {
			return err
		}
		return releaseOrder(ctx, tx, tenantID, id, number, couponCode)
	}
	return nil
}

// abandonDeliveries fails the live delivery of a cancelled order and puts its
// courier back on the available list.
func abandonDeliveries(ctx context.Context, tx pgx.Tx, tenantID, orderID uuid.UUID) error {
	rows, err := tx.Query(ctx,
		`UPDATE deliveries SET status = 'failed', completed_at = now(), updated_at = now(),
			note = CASE WHEN note = '' THEN 'order cancelled' ELSE note END
		 WHERE tenant_id = $1 AND order_id = $2 AND status IN ('assigned', 'picked_up')
		 RETURNING courier_id`,
		tenantID, orderID)
	if err != nil {
		return err
	}
	couriers, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return err
	}
	if len(couriers) == 0 {
		return nil
	}
	_, err = tx.Exec(ctx,
		`UPDATE couriers SET status = 'available', updated_at = now()
		 WHERE tenant_id = $1 AND id = ANY($2) AND status = 'busy'`,
		tenantID, couriers)
	return err
}

// releaseOrder puts an order's reserved stock back and gives back its coupon use.
func releaseOrder(ctx context.Context, tx pgx.Tx, tenantID, id uuid.UUID, number, couponCode string) error {
	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return err
	}
	type line struct {
		productID uuid.UUID
		qty       int
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (line, error) {
		var l line
		err := row.Scan(&l.productID, &l.qty)
		return l, err
	})
	if err != nil {
		return err
	}

	for _, l := range lines {
		if _, err := adjustStock(ctx, tx, tenantID, l.productID, l.qty, domain.MovementCancel, &id, number); err != nil {
			return err
		}
	}

	if couponCode != "" {
		_, err := tx.Exec(ctx,
			`UPDATE coupons SET redemptions = GREATEST(redemptions - 1, 0), updated_at = now()
			 WHERE tenant_id = $1 AND code = $2`, tenantID, couponCode)
		if err != nil {
			return err
		}
	}
	return nil
}

// staleOrMissing tells apart a row that is gone from one whose state moved.
func staleOrMissing(ctx context.Context, q querier, existsSQL string, args ...any) error {
	var exists bool
	if err := q.QueryRow(ctx, existsSQL, args...).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("status changed concurrently: %w", domain.ErrConflict)
}

// Delete removes a pending or cancelled order. Deleting a pending order
// releases what it reserved first.
func (r *OrderRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status domain.OrderStatus
		var number, couponCode string
		err := tx.QueryRow(ctx,
			`SELECT status, number, coupon_code FROM orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			tenantID, id,
		).Scan(&status, &number, &couponCode)
		if err != nil {
			return err
		}
		if !status.Deletable() {
			return fmt.Errorf("order %s is %s: %w", number, status, domain.ErrInvalidTransition)
		}
		if status == domain.OrderStatusPending {
			if err := releaseOrder(ctx, tx, tenantID, id, number, couponCode); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		return err
	})
	if err != nil {
		return wrapErr("orderRepo.Delete", err)
	}
	return nil
}

// CountSince counts orders created in [from, to) that were not cancelled.
func (r *OrderRepo) CountSince(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders
		 WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3 AND status <> $4`,
		tenantID, from, to, domain.OrderStatusCancelled,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("orderRepo.CountSince", err)
	}
	return n, nil
}
