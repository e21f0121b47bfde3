package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type PurchaseOrderRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseOrderRepo(pool *pgxpool.Pool) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{pool: pool}
}

const poColumns = `id, tenant_id, number, vendor_name, vendor_email, status, total, expected_at, notes,
	attachment_key, created_by, approved_by, submitted_at, approved_at, received_at, created_at, updated_at`

func scanPO(row pgx.Row) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := row.Scan(&po.ID, &po.TenantID, &po.Number, &po.VendorName, &po.VendorEmail, &po.Status, &po.Total,
		&po.ExpectedAt, &po.Notes, &po.AttachmentKey, &po.CreatedBy, &po.ApprovedBy,
		&po.SubmittedAt, &po.ApprovedAt, &po.ReceivedAt, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func insertPOItems(ctx context.Context, tx pgx.Tx, po *domain.PurchaseOrder) error {
	batch := &pgx.Batch{}
	for i, it := range po.Items {
		batch.Queue(
			`INSERT INTO purchase_order_items (id, purchase_order_id, position, product_id, product_name,
				ordered_quantity, received_quantity, unit_cost, amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, po.ID, i, it.ProductID, it.ProductName, it.OrderedQuantity, it.ReceivedQuantity, it.UnitCost, it.Amount,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Create numbers the purchase order and writes it with its items.
func (r *PurchaseOrderRepo) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		seq, err := nextSequence(ctx, tx, po.TenantID, "purchase_order")
		if err != nil {
			return err
		}
		po.Number = domain.PurchaseOrderNumber(seq)

		if _, err := tx.Exec(ctx,
			`INSERT INTO purchase_orders (id, tenant_id, number, vendor_name, vendor_email, status, total, expected_at,
				notes, attachment_key, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			po.ID, po.TenantID, po.Number, po.VendorName, po.VendorEmail, po.Status, po.Total, po.ExpectedAt,
			po.Notes, po.AttachmentKey, po.CreatedBy, po.CreatedAt, po.UpdatedAt,
		); err != nil {
			return err
		}
		return insertPOItems(ctx, tx, po)
	})
	if err != nil {
		return wrapErr("purchaseOrderRepo.Create", err)
	}
	return nil
}

func (r *PurchaseOrderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	po, err := scanPO(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("purchaseOrderRepo.GetByID", err)
	}
	if err := loadPOItems(ctx, r.pool, []*domain.PurchaseOrder{po}); err != nil {
		return nil, fmt.Errorf("purchaseOrderRepo.GetByID: %w", err)
	}
	return po, nil
}

func (r *PurchaseOrderRepo) List(ctx context.Context, tenantID uuid.UUID, status domain.PurchaseOrderStatus, limit, offset int) ([]*domain.PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+poColumns+` FROM purchase_orders
		 WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, string(status), pageLimit(limit), offset,
	)
	if err != nil {
		return nil, wrapErr("purchaseOrderRepo.List", err)
	}
	defer rows.Close()

	var out []*domain.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("purchaseOrderRepo.List: scan: %w", err)
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchaseOrderRepo.List: rows: %w", err)
	}

	if err := loadPOItems(ctx, r.pool, out); err != nil {
		return nil, fmt.Errorf("purchaseOrderRepo.List: %w", err)
	}
	return out, nil
}

func loadPOItems(ctx context.Context, q querier, pos []*domain.PurchaseOrder) error {
	if len(pos) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.PurchaseOrder, len(pos))
	ids := make([]uuid.UUID, 0, len(pos))
	for _, po := range pos {
		po.Items = []domain.PurchaseOrderItem{}
		byID[po.ID] = po
		ids = append(ids, po.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT id, purchase_order_id, product_id, product_name, ordered_quantity, received_quantity, unit_cost, amount
		 FROM purchase_order_items WHERE purchase_order_id = ANY($1) ORDER BY purchase_order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.PurchaseOrderItem
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.ProductID, &it.ProductName,
			&it.OrderedQuantity, &it.ReceivedQuantity, &it.UnitCost, &it.Amount); err != nil {
			return fmt.Errorf("items: scan: %w", err)
		}
		po := byID[it.PurchaseOrderID]
		po.Items = append(po.Items, it)
	}
	return rows.Err()
}

// Update rewrites a draft's header and replaces its items.
func (r *PurchaseOrderRepo) Update(ctx context.Context, po *domain.PurchaseOrder) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE purchase_orders SET vendor_name = $1, vendor_email = $2, total = $3, expected_at = $4,
				notes = $5, updated_at = now()
			 WHERE tenant_id = $6 AND id = $7 AND status = 'draft'`,
			po.VendorName, po.VendorEmail, po.Total, po.ExpectedAt, po.Notes, po.TenantID, po.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			err := staleOrMissing(ctx, tx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE tenant_id = $1 AND id = $2)`, po.TenantID, po.ID)
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("only draft purchase orders can be edited: %w", domain.ErrInvalidTransition)
			}
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, po.ID); err != nil {
			return err
		}
		return insertPOItems(ctx, tx, po)
	})
	if err != nil {
		return wrapErr("purchaseOrderRepo.Update", err)
	}
	return nil
}

// UpdateStatus writes po's status and workflow timestamps if the stored
// status still equals from.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, po *domain.PurchaseOrder, from domain.PurchaseOrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_orders SET status = $1, submitted_at = $2, approved_at = $3, approved_by = $4,
			received_at = $5, updated_at = now()
		 WHERE tenant_id = $6 AND id = $7 AND status = $8`,
		po.Status, po.SubmittedAt, po.ApprovedAt, po.ApprovedBy, po.ReceivedAt, po.TenantID, po.ID, from,
	)
	if err != nil {
		return wrapErr("purchaseOrderRepo.UpdateStatus", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE tenant_id = $1 AND id = $2)`, po.TenantID, po.ID)
		return fmt.Errorf("purchaseOrderRepo.UpdateStatus: %w", err)
	}
	return nil
}

// ApplyReceipt persists receipts already applied to po in memory. Each line
// increment is guarded so concurrent receipts cannot exceed the ordered
// quantity. po.Status and po.ReceivedAt are refreshed from the stored row.
func (r *PurchaseOrderRepo) ApplyReceipt(ctx context.Context, po *domain.PurchaseOrder, receipts []domain.Receipt) error {
	products := make(map[uuid.UUID]uuid.UUID, len(po.Items))
	for _, it := range po.Items {
		products[it.ID] = it.ProductID
	}

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status domain.PurchaseOrderStatus
		if err := tx.QueryRow(ctx,
			`SELECT status FROM purchase_orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			po.TenantID, po.ID,
		).Scan(&status); err != nil {
			return err
		}
		if !status.CanReceive() {
			return fmt.Errorf("purchase order is %s: %w", status, domain.ErrInvalidTransition)
		}

		for _, rc := range receipts {
			tag, err := tx.Exec(ctx,
				`UPDATE purchase_order_items SET received_quantity = received_quantity + $1
				 WHERE purchase_order_id = $2 AND id = $3 AND received_quantity + $1 <= ordered_quantity`,
				rc.Quantity, po.ID, rc.ItemID,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("item %s: receipt exceeds outstanding quantity: %w", rc.ItemID, domain.ErrConflict)
			}
			if _, err := adjustStock(ctx, tx, po.TenantID, products[rc.ItemID], rc.Quantity, domain.MovementPOReceipt, &po.ID, po.Number); err != nil {
				return err
			}
		}

		// Completion is decided from the locked rows, not from po, so two
		// partial receipts that finish the order together still close it.
		return tx.QueryRow(ctx,
			`UPDATE purchase_orders SET
				status = CASE WHEN outstanding.n = 0 THEN 'received' ELSE status END,
				received_at = CASE WHEN outstanding.n = 0 THEN $1 ELSE received_at END,
				updated_at = $1
			 FROM (SELECT count(*) AS n FROM purchase_order_items
			       WHERE purchase_order_id = $3 AND received_quantity < ordered_quantity) AS outstanding
			 WHERE tenant_id = $2 AND id = $3
			 RETURNING status, received_at`,
			po.UpdatedAt, po.TenantID, po.ID,
		).Scan(&po.Status, &po.ReceivedAt)
	})
	if err != nil {
		return wrapErr("purchaseOrderRepo.ApplyReceipt", err)
	}
	return nil
}

func (r *PurchaseOrderRepo) SetAttachment(ctx context.Context, tenantID, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_orders SET attachment_key = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		key, tenantID, id,
	)
	if err != nil {
		return wrapErr("purchaseOrderRepo.SetAttachment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchaseOrderRepo.SetAttachment: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a draft or cancelled purchase order.
func (r *PurchaseOrderRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM purchase_orders WHERE tenant_id = $1 AND id = $2 AND status IN ('draft', 'cancelled')`,
		tenantID, id,
	)
	if err != nil {
		return wrapErr("purchaseOrderRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE tenant_id = $1 AND id = $2)`, tenantID, id)
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("purchaseOrderRepo.Delete: only draft or cancelled: %w", domain.ErrInvalidTransition)
		}
		return fmt.Errorf("purchaseOrderRepo.Delete: %w", err)
	}
	return nil
}
