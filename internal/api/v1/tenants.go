package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

type CreateTenantInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Tenant name"`
		Slug     string `json:"slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug (lowercase alphanumeric with hyphens)"`
		PlanCode string `json:"plan_code,omitempty" doc:"Plan code; the platform default when empty"`
	}
}

type TenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsInput struct {
	Page
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type TenantIDInput struct {
	ID uuid.UUID `path:"id" doc:"Tenant ID"`
}

type UpdateTenantInput struct {
	Body struct {
		Name     string         `json:"name,omitempty" maxLength:"255" doc:"Tenant name"`
		Settings map[string]any `json:"settings,omitempty" doc:"Storefront and notification settings"`
	}
}

type ChangePlanInput struct {
	ID   uuid.UUID `path:"id" doc:"Tenant ID"`
	Body struct {
		PlanCode string `json:"plan_code" minLength:"1" doc:"Plan code"`
	}
}

// RegisterTenantRoutes wires platform tenant administration (superadmin) and
// the current tenant's own profile.
func RegisterTenantRoutes(api huma.API, store DataStore, plans PlanEnforcer, defaultPlan string) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Create a new tenant",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		planCode := input.Body.PlanCode
		if planCode == "" {
			planCode = defaultPlan
		}
		if _, err := store.Billing().GetPlan(ctx, planCode); err != nil {
			return nil, apiError(ctx, err, "plan")
		}

		now := time.Now()
		t := &domain.Tenant{
			ID:        uuid.New(),
			Name:      input.Body.Name,
			Slug:      input.Body.Slug,
			PlanCode:  planCode,
			Status:    domain.TenantStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Tenants().Create(ctx, t); err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		recordAudit(ctx, store, t.ID, "tenant.created", "tenant", t.ID, map[string]any{"slug": t.Slug})

		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List all tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		tenants, err := store.Tenants().ListPaginated(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, apiError(ctx, err, "tenants")
		}
		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		t, err := store.Tenants().GetByID(ctx, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		return &TenantOutput{Body: t}, nil
	})

	setStatus := func(verb, summary string, status domain.TenantStatus) {
		huma.Register(api, huma.Operation{
			OperationID: verb + "-tenant",
			Method:      http.MethodPost,
			Path:        "/tenants/{id}/" + verb,
			Summary:     summary,
			Tags:        []string{"Tenants"},
		}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
			if err := requireSuperAdmin(ctx); err != nil {
				return nil, err
			}

			if err := store.Tenants().SetStatus(ctx, input.ID, status); err != nil {
				return nil, apiError(ctx, err, "tenant")
			}
			t, err := store.Tenants().GetByID(ctx, input.ID)
			if err != nil {
				return nil, apiError(ctx, err, "tenant")
			}
			recordAudit(ctx, store, t.ID, "tenant."+string(status), "tenant", t.ID, nil)
			return &TenantOutput{Body: t}, nil
		})
	}
	setStatus("suspend", "Suspend a tenant", domain.TenantStatusSuspended)
	setStatus("activate", "Reactivate a suspended tenant", domain.TenantStatusActive)

	huma.Register(api, huma.Operation{
		OperationID: "change-tenant-plan",
		Method:      http.MethodPost,
		Path:        "/tenants/{id}/plan",
		Summary:     "Move a tenant to another plan",
		Tags:        []string{"Tenants", "Billing"},
	}, func(ctx context.Context, input *ChangePlanInput) (*TenantOutput, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}

		t, err := plans.ChangePlan(ctx, input.ID, input.Body.PlanCode)
		if err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		recordAudit(ctx, store, t.ID, "tenant.plan_changed", "tenant", t.ID, map[string]any{"plan_code": t.PlanCode})
		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current-tenant",
		Method:      http.MethodGet,
		Path:        "/tenant",
		Summary:     "Get the caller's tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, _ *struct{}) (*TenantOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		t, err := store.Tenants().GetByID(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-current-tenant",
		Method:      http.MethodPut,
		Path:        "/tenant",
		Summary:     "Update the caller's tenant name or settings",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*TenantOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		t, err := store.Tenants().GetByID(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		if input.Body.Name != "" {
			t.Name = input.Body.Name
		}
		if input.Body.Settings != nil {
			t.Settings = input.Body.Settings
		}
		t.UpdatedAt = time.Now()

		if err := store.Tenants().Update(ctx, t); err != nil {
			return nil, apiError(ctx, err, "tenant")
		}
		recordAudit(ctx, store, tenantID, "tenant.updated", "tenant", tenantID, nil)
		return &TenantOutput{Body: t}, nil
	})
}
