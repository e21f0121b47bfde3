package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Plan struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	PerOrderFee decimal.Decimal `json:"per_order_fee"`
	MaxProducts int             `json:"max_products"` // 0 = unlimited
	MaxCouriers int             `json:"max_couriers"` // 0 = unlimited
	Features    []string        `json:"features"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Plan features.
const (
	FeatureGiveaways     = "giveaways"
	FeatureNotifications = "notifications"
	FeatureLiveTracking  = "live_tracking"
)

func (p *Plan) Validate() error {
	if p.Code == "" {
		return Invalid("code", "is required")
	}
	if err := NonNegative("monthly_fee", p.MonthlyFee); err != nil {
		return err
	}
	if err := NonNegative("per_order_fee", p.PerOrderFee); err != nil {
		return err
	}
	if p.MaxProducts < 0 {
		return Invalid("max_products", "must be a non-negative number")
	}
	if p.MaxCouriers < 0 {
		return Invalid("max_couriers", "must be a non-negative number")
	}
	return nil
}

func (p *Plan) HasFeature(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// AllowsMore reports whether one more resource fits under limit (0 = unlimited).
func AllowsMore(limit, current int) bool {
	return limit == 0 || current < limit
}

type InvoiceStatus string

const (
	InvoiceOpen InvoiceStatus = "open"
	InvoicePaid InvoiceStatus = "paid"
	InvoiceVoid InvoiceStatus = "void"
)

type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	PlanCode    string          `json:"plan_code"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	OrderCount  int             `json:"order_count"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	UsageFee    decimal.Decimal `json:"usage_fee"`
	Total       decimal.Decimal `json:"total"`
	Status      InvoiceStatus   `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BillingPeriod returns the calendar month containing t, in UTC, as [start, end).
func BillingPeriod(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// NewInvoice computes an invoice for orderCount orders under plan.
func NewInvoice(tenantID uuid.UUID, plan *Plan, start, end time.Time, orderCount int, now time.Time) *Invoice {
	usage := RoundMoney(plan.PerOrderFee.Mul(decimal.NewFromInt(int64(orderCount))))
	return &Invoice{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PlanCode:    plan.Code,
		PeriodStart: start,
		PeriodEnd:   end,
		OrderCount:  orderCount,
		MonthlyFee:  plan.MonthlyFee,
		UsageFee:    usage,
		Total:       RoundMoney(plan.MonthlyFee.Add(usage)),
		Status:      InvoiceOpen,
		CreatedAt:   now,
	}
}

type BillingRepository interface {
	UpsertPlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, code string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	// CreateInvoice inserts the invoice unless one already exists for the
	// tenant and period, in which case it returns ErrConflict.
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, tenantID uuid.UUID) ([]*Invoice, error)
	SetInvoiceStatus(ctx context.Context, id uuid.UUID, from, to InvoiceStatus, at time.Time) error
}
