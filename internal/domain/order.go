package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every status in workflow order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ValidTransition checks if an order status transition is allowed.
// Forward: pending->confirmed->preparing->out_for_delivery->delivered.
// Cancel: from pending, confirmed or preparing.
func (s OrderStatus) ValidTransition(to OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return to == OrderStatusConfirmed || to == OrderStatusCancelled
	case OrderStatusConfirmed:
		return to == OrderStatusPreparing || to == OrderStatusCancelled
	case OrderStatusPreparing:
		return to == OrderStatusOutForDelivery || to == OrderStatusCancelled
	case OrderStatusOutForDelivery:
		return to == OrderStatusDelivered
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Deletable orders never reached fulfilment.
func (s OrderStatus) Deletable() bool {
	return s == OrderStatusPending || s == OrderStatusCancelled
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Number          string          `json:"number"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Status          OrderStatus     `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine is a requested product and quantity before pricing.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderNumber formats a per-tenant sequence value.
func OrderNumber(seq int64) string {
	return fmt.Sprintf("ORD-%06d", seq)
}

// PriceOrder snapshots product names and prices into o.Items and fills the
// totals. products must contain every product referenced by lines. A nil coupon
// means no discount. The coupon is evaluated against the subtotal at time at.
func PriceOrder(o *Order, lines []OrderLine, products map[uuid.UUID]*Product, coupon *Coupon, at time.Time) error {
	if len(lines) == 0 {
		return Invalid("items", "at least one item is required")
	}
	if err := NonNegative("delivery_fee", o.DeliveryFee); err != nil {
		return err
	}

	o.Items = o.Items[:0]
	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		p, ok := products[l.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", l.ProductID, ErrNotFound)
		}
		if !p.Active {
			return Invalid(fmt.Sprintf("items[%d]", i), p.Name+" is not available")
		}
		lineTotal := RoundMoney(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		o.Items = append(o.Items, OrderItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	o.Subtotal = subtotal
	o.Discount = decimal.Zero
	o.CouponCode = ""
	if coupon != nil {
		off, err := coupon.Discount(subtotal, at)
		if err != nil {
			return err
		}
		o.Discount = off
		o.CouponCode = coupon.Code
	}
	o.Total = RoundMoney(o.Subtotal.Sub(o.Discount).Add(o.DeliveryFee))
	return nil
}

// RequiredStock sums quantities per product across lines.
func RequiredStock(lines []OrderLine) map[uuid.UUID]int {
	need := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		need[l.ProductID] += l.Quantity
	}
	return need
}

type OrderFilter struct {
	Status OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// OrderDraft is everything the store needs to place an order atomically.
type OrderDraft struct {
	Order      *Order
	Lines      []OrderLine
	CouponCode string
}

type OrderRepository interface {
	// Place prices the draft against current product rows, reserves stock and
	// redeems the coupon in one transaction.
	Place(ctx context.Context, draft *OrderDraft) (*Order, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	List(ctx context.Context, tenantID uuid.UUID, f OrderFilter) ([]*Order, error)
	// UpdateStatus moves the order from one status to another. Cancelling
	// returns reserved stock.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to OrderStatus) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	CountSince(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
}
