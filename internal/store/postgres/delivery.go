package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type DeliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

const deliveryColumns = `id, tenant_id, order_id, courier_id, status, fee, note,
	assigned_at, picked_up_at, completed_at, updated_at`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(&d.ID, &d.TenantID, &d.OrderID, &d.CourierID, &d.Status, &d.Fee, &d.Note,
		&d.AssignedAt, &d.PickedUpAt, &d.CompletedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepo) Assign(ctx context.Context, d *domain.Delivery) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status domain.OrderStatus
		if err := tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			d.TenantID, d.OrderID,
		).Scan(&status); err != nil {
			return fmt.Errorf("order: %w", err)
		}
		if !status.Assignable() {
			return fmt.Errorf("order is %s: %w", status, domain.ErrInvalidTransition)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE couriers SET status = 'busy', updated_at = now()
			 WHERE tenant_id = $1 AND id = $2 AND status = 'available' AND active`,
			d.TenantID, d.CourierID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			err := staleOrMissing(ctx, tx, `SELECT EXISTS (SELECT 1 FROM couriers WHERE tenant_id = $1 AND id = $2)`, d.TenantID, d.CourierID)
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("courier is not available: %w", domain.ErrConflict)
			}
			return fmt.Errorf("courier: %w", err)
		}

		d.Status = domain.DeliveryAssigned
		_, err = tx.Exec(ctx,
			`INSERT INTO deliveries (id, tenant_id, order_id, courier_id, status, fee, note, assigned_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.TenantID, d.OrderID, d.CourierID, d.Status, d.Fee, d.Note, d.AssignedAt, d.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return wrapErr("deliveryRepo.Assign", err)
	}
	return nil
}

func (r *DeliveryRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("deliveryRepo.GetByID", err)
	}
	return d, nil
}

func (r *DeliveryRepo) ListByCourier(ctx context.Context, tenantID, courierID uuid.UUID) ([]*domain.Delivery, error) {
	return r.list(ctx, "deliveryRepo.ListByCourier",
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tenant_id = $1 AND courier_id = $2
		 ORDER BY assigned_at DESC LIMIT 200`,
		tenantID, courierID)
}

func (r *DeliveryRepo) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*domain.Delivery, error) {
	return r.list(ctx, "deliveryRepo.ListActive",
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tenant_id = $1 AND status IN ('assigned', 'picked_up')
		 ORDER BY assigned_at`,
		tenantID)
}

func (r *DeliveryRepo) list(ctx context.Context, caller, query string, args ...any) ([]*domain.Delivery, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(caller, err)
	}
	defer rows.Close()

	var out []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}
	return out, nil
}

// Transition moves a delivery and carries the order and courier along:
// pickup sends the order out for delivery, completion marks it delivered,
// failure returns an order that was out back to preparing so it can be
// reassigned. Completion and failure free the courier.
func (r *DeliveryRepo) Transition(ctx context.Context, tenantID, id uuid.UUID, from, to domain.DeliveryStatus, at time.Time) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var orderID, courierID uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE deliveries SET status = $1, updated_at = $2,
				picked_up_at = CASE WHEN $1 = 'picked_up' THEN $2 ELSE picked_up_at END,
				completed_at = CASE WHEN $1 IN ('delivered', 'failed') THEN $2 ELSE completed_at END
			 WHERE tenant_id = $3 AND id = $4 AND status = $5
			 RETURNING order_id, courier_id`,
			to, at, tenantID, id, from,
		).Scan(&orderID, &courierID)
		if errors.Is(err, pgx.ErrNoRows) {
			return staleOrMissing(ctx, tx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE tenant_id = $1 AND id = $2)`, tenantID, id)
		}
		if err != nil {
			return err
		}

		var sources []string
		target := to.OrderStatusFor()
		switch to {
		case domain.DeliveryPickedUp:
			sources = []string{string(domain.OrderStatusConfirmed), string(domain.OrderStatusPreparing)}
		case domain.DeliveryDelivered:
			sources = []string{string(domain.OrderStatusOutForDelivery)}
		case domain.DeliveryFailed:
			target = domain.OrderStatusPreparing
			sources = []string{string(domain.OrderStatusOutForDelivery)}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE orders SET status = $1, updated_at = $2
			 WHERE tenant_id = $3 AND id = $4 AND status = ANY($5)`,
			target, at, tenantID, orderID, sources,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 && to != domain.DeliveryFailed {
			return fmt.Errorf("order %s is no longer deliverable: %w", orderID, domain.ErrConflict)
		}

		if to == domain.DeliveryDelivered || to == domain.DeliveryFailed {
			if _, err := tx.Exec(ctx,
				`UPDATE couriers SET status = 'available', updated_at = $1
				 WHERE tenant_id = $2 AND id = $3 AND status = 'busy'`,
				at, tenantID, courierID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("deliveryRepo.Transition", err)
	}
	return nil
}
