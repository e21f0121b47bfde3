package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/domain"
)

func TestListAudit(t *testing.T) {
	t.Parallel()

	t.Run("admin_pages", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			audit: &mockAuditRepo{
				listByTenantFunc: func(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
					assert.Equal(t, fixedTenantID(), tenantID)
					assert.Equal(t, 25, limit)
					assert.Equal(t, 50, offset)
					return []*domain.AuditEntry{{ID: uuid.New(), Action: "order.created"}}, nil
				},
			},
		}
		v1.RegisterAuditRoutes(api, store)

		resp := api.GetCtx(adminCtx(fixedTenantID()), "/audit?limit=25&offset=50")
		require.Equal(t, http.StatusOK, resp.Code)

		var body []domain.AuditEntry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "order.created", body[0].Action)
	})

	t.Run("member_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuditRoutes(api, &mockDataStore{})

		resp := api.GetCtx(memberCtx(fixedTenantID()), "/audit")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// Mutations recorded through one store show up in the per-record history.
func TestAuditTrail_ResourceHistory(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	o := orderWithStatus(domain.OrderStatusPending)
	repo := ordersReturning(o)
	repo.updateStatusFunc = func(context.Context, uuid.UUID, uuid.UUID, domain.OrderStatus, domain.OrderStatus) error {
		return nil
	}
	store := &mockDataStore{orders: repo}
	v1.RegisterOrderRoutes(api, store, nil, nil, nil)
	v1.RegisterAuditRoutes(api, store)

	resp := api.PostCtx(memberCtx(fixedTenantID()), "/orders/"+o.ID.String()+"/status", map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.GetCtx(viewerCtx(fixedTenantID()), "/audit/order/"+o.ID.String())
	require.Equal(t, http.StatusOK, resp.Code)

	var body []domain.AuditEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "order.status_changed", body[0].Action)
	assert.Equal(t, fixedUserID().String(), body[0].ActorID)
	assert.Equal(t, "pending", body[0].Details["from"])
}
