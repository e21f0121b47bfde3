package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Category          string          `json:"category,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Cost              decimal.Decimal `json:"cost"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Active            bool            `json:"active"`
	ImageKey          string          `json:"image_key,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Validate checks the invariants a product row must satisfy before it is written.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return Invalid("sku", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name", "is required")
	}
	if err := NonNegative("price", p.Price); err != nil {
		return err
	}
	if err := NonNegative("cost", p.Cost); err != nil {
		return err
	}
	if p.StockQuantity < 0 {
		return Invalid("stock_quantity", "must be a non-negative number")
	}
	if p.LowStockThreshold < 0 {
		return Invalid("low_stock_threshold", "must be a non-negative number")
	}
	return nil
}

// IsLowStock reports whether stock has fallen to or below the threshold.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

// Margin is price minus cost.
func (p *Product) Margin() decimal.Decimal {
	return p.Price.Sub(p.Cost)
}

// Inventory movement reasons.
const (
	MovementAdjustment = "adjustment"
	MovementSale       = "sale"
	MovementCancel     = "order_cancelled"
	MovementPOReceipt  = "po_receipt"
	MovementStockCount = "stock_count"
	MovementDamaged    = "damaged"
)

// StockMovement is an append-only record of a stock quantity change.
type StockMovement struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Delta      int        `json:"delta"`
	Reason     string     `json:"reason"`
	Reference  *uuid.UUID `json:"reference,omitempty"` // order or purchase order
	Note       string     `json:"note,omitempty"`
	StockAfter int        `json:"stock_after"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ProductFilter struct {
	Category   string
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	List(ctx context.Context, tenantID uuid.UUID, f ProductFilter) ([]*Product, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
	Update(ctx context.Context, p *Product) error
	SetImage(ctx context.Context, tenantID, id uuid.UUID, key string) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// AdjustStock applies delta atomically and records a movement. It fails with
	// ErrInsufficientStock when the result would be negative.
	AdjustStock(ctx context.Context, tenantID, id uuid.UUID, delta int, reason, note string) (*StockMovement, error)
	ListMovements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]*StockMovement, error)
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]*Product, error)
}
