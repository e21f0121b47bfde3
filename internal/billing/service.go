// Package billing enforces plan limits and produces the monthly platform invoices.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
)

type Resource string

const (
	ResourceProducts Resource = "products"
	ResourceCouriers Resource = "couriers"
)

// Counter counts a tenant's existing resources.
type Counter interface {
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// OrderCounter counts billable orders in [from, to).
type OrderCounter interface {
	CountSince(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
}

type Service struct {
	tenants  domain.TenantRepository
	billing  domain.BillingRepository
	orders   OrderCounter
	counters map[Resource]Counter
	now      func() time.Time
}

func NewService(tenants domain.TenantRepository, billing domain.BillingRepository, orders OrderCounter, products, couriers Counter) *Service {
	return &Service{
		tenants: tenants,
		billing: billing,
		orders:  orders,
		counters: map[Resource]Counter{
			ResourceProducts: products,
			ResourceCouriers: couriers,
		},
		now: time.Now,
	}
}

// PlanFor returns the tenant's current plan.
func (s *Service) PlanFor(ctx context.Context, tenantID uuid.UUID) (*domain.Plan, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing.Service.PlanFor: %w", err)
	}
	p, err := s.billing.GetPlan(ctx, t.PlanCode)
	if err != nil {
		return nil, fmt.Errorf("billing.Service.PlanFor: plan %q: %w", t.PlanCode, err)
	}
	return p, nil
}

// CheckLimit returns ErrLimitExceeded when the tenant cannot create one more
// of resource under its plan.
func (s *Service) CheckLimit(ctx context.Context, tenantID uuid.UUID, resource Resource) error {
	counter, ok := s.counters[resource]
	if !ok {
		return fmt.Errorf("billing.Service.CheckLimit: unknown resource %q", resource)
	}
	plan, err := s.PlanFor(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing.Service.CheckLimit: %w", err)
	}

	limit := plan.MaxProducts
	if resource == ResourceCouriers {
		limit = plan.MaxCouriers
	}
	if limit == 0 {
		return nil
	}

	n, err := counter.Count(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing.Service.CheckLimit: count %s: %w", resource, err)
	}
	if !domain.AllowsMore(limit, n) {
		return domain.OverLimit(fmt.Sprintf("%s plan allows %d %s", plan.Name, limit, resource))
	}
	return nil
}

// RequireFeature returns ErrLimitExceeded when the tenant's plan lacks feature.
func (s *Service) RequireFeature(ctx context.Context, tenantID uuid.UUID, feature string) error {
	plan, err := s.PlanFor(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing.Service.RequireFeature: %w", err)
	}
	if !plan.HasFeature(feature) {
		return domain.OverLimit(fmt.Sprintf("%s plan does not include %s", plan.Name, feature))
	}
	return nil
}

// ChangePlan moves the tenant to another plan. Existing resources above the
// new limits are kept; only further creation is blocked.
func (s *Service) ChangePlan(ctx context.Context, tenantID uuid.UUID, planCode string) (*domain.Tenant, error) {
	if _, err := s.billing.GetPlan(ctx, planCode); err != nil {
		return nil, fmt.Errorf("billing.Service.ChangePlan: plan %q: %w", planCode, err)
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing.Service.ChangePlan: %w", err)
	}
	t.PlanCode = planCode
	t.UpdatedAt = s.now()
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("billing.Service.ChangePlan: %w", err)
	}
	return t, nil
}

// GenerateInvoices invoices every tenant for the calendar month containing at.
// Tenants already invoiced for that month are skipped, so reruns are safe.
// It returns the number of invoices created.
func (s *Service) GenerateInvoices(ctx context.Context, at time.Time) (int, error) {
	start, end := domain.BillingPeriod(at)

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("billing.Service.GenerateInvoices: %w", err)
	}

	plans := make(map[string]*domain.Plan)
	created := 0
	var errs []error
	for _, t := range tenants {
		plan, ok := plans[t.PlanCode]
		if !ok {
			plan, err = s.billing.GetPlan(ctx, t.PlanCode)
			if err != nil {
				errs = append(errs, fmt.Errorf("tenant %s: plan %q: %w", t.ID, t.PlanCode, err))
				continue
			}
			plans[t.PlanCode] = plan
		}

		n, err := s.orders.CountSince(ctx, t.ID, start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: count orders: %w", t.ID, err))
			continue
		}

		inv := domain.NewInvoice(t.ID, plan, start, end, n, s.now())
		if err := s.billing.CreateInvoice(ctx, inv); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("tenant %s: %w", t.ID, err))
			continue
		}
		created++
	}

	log.Info().
		Time("period_start", start).
		Int("tenants", len(tenants)).
		Int("created", created).
		Int("failed", len(errs)).
		Msg("invoices generated")

	if len(errs) > 0 {
		return created, fmt.Errorf("billing.Service.GenerateInvoices: %w", errors.Join(errs...))
	}
	return created, nil
}

// GeneratePreviousMonth invoices the month before now.
func (s *Service) GeneratePreviousMonth(ctx context.Context) (int, error) {
	start, _ := domain.BillingPeriod(s.now())
	return s.GenerateInvoices(ctx, start.AddDate(0, -1, 0))
}

func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.settle(ctx, "MarkPaid", id, domain.InvoicePaid)
}

func (s *Service) Void(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.settle(ctx, "Void", id, domain.InvoiceVoid)
}

// settle moves an open invoice to a final status.
func (s *Service) settle(ctx context.Context, op string, id uuid.UUID, to domain.InvoiceStatus) (*domain.Invoice, error) {
	inv, err := s.billing.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing.Service.%s: %w", op, err)
	}
	if inv.Status != domain.InvoiceOpen {
		return nil, fmt.Errorf("billing.Service.%s: invoice is %s: %w", op, inv.Status, domain.ErrInvalidTransition)
	}
	if err := s.billing.SetInvoiceStatus(ctx, id, domain.InvoiceOpen, to, s.now()); err != nil {
		return nil, fmt.Errorf("billing.Service.%s: %w", op, err)
	}
	inv, err = s.billing.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing.Service.%s: reload: %w", op, err)
	}
	return inv, nil
}
