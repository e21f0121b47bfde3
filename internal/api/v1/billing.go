package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/server/middleware"
)

type ListPlansOutput struct {
	Body []*domain.Plan
}

type PlanOutput struct {
	Body *domain.Plan
}

type UpsertPlanInput struct {
	Code string `path:"code" pattern:"^[a-z0-9_-]+$" doc:"Plan code"`
	Body struct {
		Name        string          `json:"name" minLength:"1" maxLength:"100"`
		MonthlyFee  decimal.Decimal `json:"monthly_fee" doc:"Decimal string"`
		PerOrderFee decimal.Decimal `json:"per_order_fee" doc:"Decimal string"`
		MaxProducts int             `json:"max_products" minimum:"0" doc:"0 means unlimited"`
		MaxCouriers int             `json:"max_couriers" minimum:"0" doc:"0 means unlimited"`
		Features    []string        `json:"features,omitempty" doc:"giveaways, notifications, live_tracking"`
	}
}

type ListInvoicesOutput struct {
	Body []*domain.Invoice
}

type GenerateInvoicesInput struct {
	Body struct {
		Period *time.Time `json:"period,omitempty" doc:"Any instant in the month to bill; the previous month when omitted"`
	}
}

type GenerateInvoicesOutput struct {
	Body struct {
		Created int `json:"created" doc:"Invoices created; tenants already invoiced are skipped"`
	}
}

type InvoiceIDInput struct {
	ID uuid.UUID `path:"id" doc:"Invoice ID"`
}

type InvoiceOutput struct {
	Body *domain.Invoice
}

func RegisterBillingRoutes(api huma.API, store DataStore, plans PlanEnforcer) {
	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List subscription plans",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, _ *struct{}) (*ListPlansOutput, error) {
		ps, err := store.Billing().ListPlans(ctx)
		if err != nil {
			return nil, apiError(ctx, err, "plans")
		}
		return &ListPlansOutput{Body: ps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-plan",
		Method:      http.MethodPut,
		Path:        "/plans/{code}",
		Summary:     "Create or replace a plan",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *UpsertPlanInput) (*PlanOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		now := time.Now()
		p := &domain.Plan{
			Code:        input.Code,
			Name:        strings.TrimSpace(input.Body.Name),
			MonthlyFee:  domain.RoundMoney(input.Body.MonthlyFee),
			PerOrderFee: domain.RoundMoney(input.Body.PerOrderFee),
			MaxProducts: input.Body.MaxProducts,
			MaxCouriers: input.Body.MaxCouriers,
			Features:    input.Body.Features,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if p.Features == nil {
			p.Features = []string{}
		}
		if err := p.Validate(); err != nil {
			return nil, apiError(ctx, err, "plan")
		}
		if err := store.Billing().UpsertPlan(ctx, p); err != nil {
			return nil, apiError(ctx, err, "plan")
		}
		// Plans are keyed by code; the trail lives with the operator's tenant.
		operator, _ := middleware.TenantIDFromContext(ctx)
		recordAudit(ctx, store, operator, "plan.upserted", "plan", uuid.Nil, map[string]any{
			"code":          p.Code,
			"monthly_fee":   p.MonthlyFee.StringFixed(2),
			"per_order_fee": p.PerOrderFee.StringFixed(2),
		})
		return &PlanOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current-plan",
		Method:      http.MethodGet,
		Path:        "/billing/plan",
		Summary:     "Get the caller's plan and limits",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, _ *struct{}) (*PlanOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		p, err := plans.PlanFor(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "plan")
		}
		return &PlanOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invoices",
		Method:      http.MethodGet,
		Path:        "/billing/invoices",
		Summary:     "List the caller's invoices",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, _ *struct{}) (*ListInvoicesOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		invs, err := store.Billing().ListInvoices(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "invoices")
		}
		return &ListInvoicesOutput{Body: invs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-invoices",
		Method:      http.MethodPost,
		Path:        "/billing/invoices/generate",
		Summary:     "Invoice every tenant for a month",
		Description: "Safe to rerun; tenants already invoiced for the month are skipped.",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *GenerateInvoicesInput) (*GenerateInvoicesOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		at := time.Now().UTC()
		if input.Body.Period != nil {
			at = *input.Body.Period
		} else {
			start, _ := domain.BillingPeriod(at)
			at = start.AddDate(0, -1, 0)
		}

		n, err := plans.GenerateInvoices(ctx, at)
		if err != nil {
			return nil, apiError(ctx, err, "invoices")
		}
		operator, _ := middleware.TenantIDFromContext(ctx)
		recordAudit(ctx, store, operator, "invoice.generated", "invoice", uuid.Nil, map[string]any{
			"period":  at.Format("2006-01"),
			"created": n,
		})
		out := &GenerateInvoicesOutput{}
		out.Body.Created = n
		return out, nil
	})

	settle := func(verb, summary string, apply func(PlanEnforcer, context.Context, uuid.UUID) (*domain.Invoice, error)) {
		huma.Register(api, huma.Operation{
			OperationID: verb + "-invoice",
			Method:      http.MethodPost,
			Path:        "/billing/invoices/{id}/" + verb,
			Summary:     summary,
			Tags:        []string{"Billing"},
		}, func(ctx context.Context, input *InvoiceIDInput) (*InvoiceOutput, error) {
			if err := requireSuperAdmin(ctx); err != nil {
				return nil, err
			}

			inv, err := apply(plans, ctx, input.ID)
			if err != nil {
				return nil, apiError(ctx, err, "invoice")
			}
			recordAudit(ctx, store, inv.TenantID, "invoice."+string(inv.Status), "invoice", inv.ID, map[string]any{
				"total": inv.Total.String(),
			})
			return &InvoiceOutput{Body: inv}, nil
		})
	}
	settle("pay", "Mark an open invoice paid", PlanEnforcer.MarkPaid)
	settle("void", "Void an open invoice", PlanEnforcer.Void)
}
