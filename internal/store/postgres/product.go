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

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productColumns = `id, tenant_id, sku, name, description, category, price, cost,
	stock_quantity, low_stock_threshold, active, image_key, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price, &p.Cost,
		&p.StockQuantity, &p.LowStockThreshold, &p.Active, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows, caller string) ([]*domain.Product, error) {
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}
	return products, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, tenant_id, sku, name, description, category, price, cost,
			stock_quantity, low_stock_threshold, active, image_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.TenantID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Cost,
		p.StockQuantity, p.LowStockThreshold, p.Active, p.ImageKey, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("productRepo.Create", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("productRepo.GetByID", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, tenantID uuid.UUID, f domain.ProductFilter) ([]*domain.Product, error) {
	var sb strings.Builder
	args := []any{tenantID}
	sb.WriteString(`SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1`)

	if f.Category != "" {
		args = append(args, f.Category)
		sb.WriteString(` AND category = $` + strconv.Itoa(len(args)))
	}
	if f.ActiveOnly {
		sb.WriteString(` AND active`)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := strconv.Itoa(len(args))
		sb.WriteString(` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + `)`)
	}

	args = append(args, pageLimit(f.Limit), f.Offset)
	sb.WriteString(` ORDER BY name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapErr("productRepo.List", err)
	}
	return collectProducts(rows, "productRepo.List")
}

func (r *ProductRepo) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, wrapErr("productRepo.Count", err)
	}
	return n, nil
}

// Update writes descriptive fields. Stock moves only through AdjustStock.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET sku = $1, name = $2, description = $3, category = $4, price = $5, cost = $6,
			low_stock_threshold = $7, active = $8, updated_at = now()
		 WHERE tenant_id = $9 AND id = $10`,
		p.SKU, p.Name, p.Description, p.Category, p.Price, p.Cost, p.LowStockThreshold, p.Active, p.TenantID, p.ID,
	)
	if err != nil {
		return wrapErr("productRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("productRepo.Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ProductRepo) SetImage(ctx context.Context, tenantID, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET image_key = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		key, tenantID, id,
	)
	if err != nil {
		return wrapErr("productRepo.SetImage", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("productRepo.SetImage: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a product. Products referenced by orders or purchase orders
// cannot be deleted and report ErrConflict; deactivate them instead.
func (r *ProductRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("productRepo.Delete: product is referenced: %w", domain.ErrConflict)
	}
	if err != nil {
		return wrapErr("productRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("productRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ProductRepo) AdjustStock(ctx context.Context, tenantID, id uuid.UUID, delta int, reason, note string) (*domain.StockMovement, error) {
	var m *domain.StockMovement
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		m, err = adjustStock(ctx, tx, tenantID, id, delta, reason, nil, note)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("productRepo.AdjustStock: %w", err)
	}
	return m, nil
}

// adjustStock applies delta to one product and appends a movement. The
// conditional update keeps stock from going negative under concurrent writers.
func adjustStock(ctx context.Context, q querier, tenantID, productID uuid.UUID, delta int, reason string, ref *uuid.UUID, note string) (*domain.StockMovement, error) {
	if delta == 0 {
		return nil, domain.Invalid("delta", "must not be zero")
	}

	var after int
	err := q.QueryRow(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3 AND stock_quantity + $1 >= 0
		 RETURNING stock_quantity`,
		delta, tenantID, productID,
	).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE tenant_id = $1 AND id = $2)`,
			tenantID, productID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}
	if err != nil {
		return nil, wrapErr("adjustStock", err)
	}

	m := &domain.StockMovement{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ProductID:  productID,
		Delta:      delta,
		Reason:     reason,
		Reference:  ref,
		Note:       note,
		StockAfter: after,
		CreatedAt:  time.Now(),
	}
	_, err = q.Exec(ctx,
		`INSERT INTO stock_movements (id, tenant_id, product_id, delta, reason, reference, note, stock_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TenantID, m.ProductID, m.Delta, m.Reason, m.Reference, m.Note, m.StockAfter, m.CreatedAt,
	)
	if err != nil {
		return nil, wrapErr("adjustStock: movement", err)
	}
	return m, nil
}

func (r *ProductRepo) ListMovements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]*domain.StockMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, product_id, delta, reason, reference, note, stock_after, created_at
		 FROM stock_movements WHERE tenant_id = $1 AND product_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		tenantID, productID, pageLimit(limit),
	)
	if err != nil {
		return nil, wrapErr("productRepo.ListMovements", err)
	}
	defer rows.Close()

	var out []*domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ProductID, &m.Delta, &m.Reason, &m.Reference, &m.Note, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("productRepo.ListMovements: scan: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("productRepo.ListMovements: rows: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE tenant_id = $1 AND active AND stock_quantity <= low_stock_threshold
		 ORDER BY stock_quantity, name`,
		tenantID,
	)
	if err != nil {
		return nil, wrapErr("productRepo.ListLowStock", err)
	}
	return collectProducts(rows, "productRepo.ListLowStock")
}

// productsByID loads the given products with a row lock for the rest of tx.
func productsByID(ctx context.Context, q querier, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	rows, err := q.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = ANY($2) FOR UPDATE`,
		tenantID, ids,
	)
	if err != nil {
		return nil, err
	}
	list, err := collectProducts(rows, "productsByID")
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*domain.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}
