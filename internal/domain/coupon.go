package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

type Coupon struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	Code           string          `json:"code"`
	Kind           CouponKind      `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	MinOrderTotal  decimal.Decimal `json:"min_order_total"`
	MaxRedemptions int             `json:"max_redemptions"` // 0 = unlimited
	Redemptions    int             `json:"redemptions"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Coupon rejection reasons, surfaced to the operator as-is.
var (
	ErrCouponInactive   = Invalid("coupon", "is not active")
	ErrCouponNotStarted = Invalid("coupon", "is not valid yet")
	ErrCouponExpired    = Invalid("coupon", "has expired")
	ErrCouponExhausted  = Invalid("coupon", "has reached its redemption limit")
	ErrCouponMinNotMet  = Invalid("coupon", "order total is below the coupon minimum")
)

// NormalizeCouponCode upper-cases and trims a code so lookups are case-insensitive.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) Validate() error {
	if c.Code == "" {
		return Invalid("code", "is required")
	}
	switch c.Kind {
	case CouponPercent:
		if !c.Value.IsPositive() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return Invalid("value", "percent must be between 0 and 100")
		}
	case CouponFixed:
		if !c.Value.IsPositive() {
			return Invalid("value", "must be greater than zero")
		}
	default:
		return Invalid("kind", "must be percent or fixed")
	}
	if err := NonNegative("min_order_total", c.MinOrderTotal); err != nil {
		return err
	}
	if c.MaxRedemptions < 0 {
		return Invalid("max_redemptions", "must be a non-negative number")
	}
	if c.ValidFrom != nil && c.ValidTo != nil && c.ValidTo.Before(*c.ValidFrom) {
		return Invalid("valid_to", "must be after valid_from")
	}
	return nil
}

// Discount returns the amount taken off subtotal at time at, or the reason the
// coupon cannot be used.
func (c *Coupon) Discount(subtotal decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, ErrCouponInactive
	}
	if c.ValidFrom != nil && at.Before(*c.ValidFrom) {
		return decimal.Zero, ErrCouponNotStarted
	}
	if c.ValidTo != nil && at.After(*c.ValidTo) {
		return decimal.Zero, ErrCouponExpired
	}
	if c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions {
		return decimal.Zero, ErrCouponExhausted
	}
	if subtotal.LessThan(c.MinOrderTotal) {
		return decimal.Zero, ErrCouponMinNotMet
	}

	var off decimal.Decimal
	switch c.Kind {
	case CouponPercent:
		off = RoundMoney(subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)))
	case CouponFixed:
		off = decimal.Min(c.Value, subtotal)
	}
	return off, nil
}

type CouponRepository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Coupon, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
