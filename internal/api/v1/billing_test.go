package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/domain"
)

func TestUpsertPlan(t *testing.T) {
	t.Parallel()

	t.Run("superadmin", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			billing: &mockBillingRepo{
				upsertPlanFunc: func(_ context.Context, p *domain.Plan) error {
					assert.Equal(t, "growth", p.Code)
					assert.Equal(t, "29.90", p.MonthlyFee.StringFixed(2))
					assert.NotNil(t, p.Features)
					return nil
				},
			},
		}
		v1.RegisterBillingRoutes(api, store, &mockPlans{})

		resp := api.PutCtx(superCtx(), "/plans/growth", map[string]any{
			"name":          "Growth",
			"monthly_fee":   "29.899",
			"per_order_fee": "0.05",
			"max_products":  500,
		})
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"plan.upserted"}, store.auditActions())
	})

	t.Run("negative_fee", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBillingRoutes(api, &mockDataStore{}, &mockPlans{})

		resp := api.PutCtx(superCtx(), "/plans/growth", map[string]any{
			"name":          "Growth",
			"monthly_fee":   "-1",
			"per_order_fee": "0",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("tenant_admin_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBillingRoutes(api, &mockDataStore{}, &mockPlans{})

		resp := api.PutCtx(adminCtx(fixedTenantID()), "/plans/growth", map[string]any{
			"name":          "Growth",
			"monthly_fee":   "1",
			"per_order_fee": "0",
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestGenerateInvoices(t *testing.T) {
	t.Parallel()

	t.Run("defaults_to_previous_month", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		plans := &mockPlans{
			generateFunc: func(_ context.Context, at time.Time) (int, error) {
				start, _ := domain.BillingPeriod(time.Now().UTC())
				assert.True(t, at.Before(start), "period %s should precede %s", at, start)
				return 4, nil
			},
		}
		store := &mockDataStore{}
		v1.RegisterBillingRoutes(api, store, plans)

		resp := api.PostCtx(superCtx(), "/billing/invoices/generate", map[string]any{})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"invoice.generated"}, store.auditActions())

		var body struct {
			Created int `json:"created"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 4, body.Created)
	})

	t.Run("explicit_period", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		plans := &mockPlans{
			generateFunc: func(_ context.Context, at time.Time) (int, error) {
				assert.Equal(t, time.August, at.Month())
				return 0, nil
			},
		}
		v1.RegisterBillingRoutes(api, &mockDataStore{}, plans)

		resp := api.PostCtx(superCtx(), "/billing/invoices/generate", map[string]any{"period": "2026-08-15T00:00:00Z"})
		assert.Equal(t, http.StatusOK, resp.Code)
	})
}

func TestSettleInvoice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		verb   string
		status domain.InvoiceStatus
	}{
		{verb: "pay", status: domain.InvoicePaid},
		{verb: "void", status: domain.InvoiceVoid},
	}

	for _, tc := range cases {
		t.Run(tc.verb, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			id := uuid.New()
			plans := &mockPlans{
				settleFunc: func(_ context.Context, got uuid.UUID, to domain.InvoiceStatus) (*domain.Invoice, error) {
					assert.Equal(t, id, got)
					return &domain.Invoice{ID: got, TenantID: fixedTenantID2(), Status: to, Total: decimal.NewFromInt(10)}, nil
				},
			}
			store := &mockDataStore{}
			v1.RegisterBillingRoutes(api, store, plans)

			resp := api.PostCtx(superCtx(), "/billing/invoices/"+id.String()+"/"+tc.verb)
			require.Equal(t, http.StatusOK, resp.Code)
			assert.Equal(t, []string{"invoice." + string(tc.status)}, store.auditActions())
		})
	}

	t.Run("already_settled", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		plans := &mockPlans{
			settleFunc: func(context.Context, uuid.UUID, domain.InvoiceStatus) (*domain.Invoice, error) {
				return nil, domain.ErrInvalidTransition
			},
		}
		v1.RegisterBillingRoutes(api, &mockDataStore{}, plans)

		resp := api.PostCtx(superCtx(), "/billing/invoices/"+uuid.NewString()+"/pay")
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}
