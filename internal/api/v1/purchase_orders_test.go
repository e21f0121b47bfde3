package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/storage"
)

func approvedPO() *domain.PurchaseOrder {
	id := uuid.New()
	return &domain.PurchaseOrder{
		ID:         id,
		TenantID:   fixedTenantID(),
		Number:     "PO-000042",
		VendorName: "Tea Imports",
		Status:     domain.POStatusApproved,
		Items: []domain.PurchaseOrderItem{
			{ID: uuid.New(), PurchaseOrderID: id, ProductID: uuid.New(), ProductName: "Green tea", OrderedQuantity: 10, UnitCost: decimal.NewFromInt(1)},
			{ID: uuid.New(), PurchaseOrderID: id, ProductID: uuid.New(), ProductName: "Black tea", OrderedQuantity: 5, UnitCost: decimal.NewFromInt(2)},
		},
	}
}

func poRepoWith(po *domain.PurchaseOrder) *mockPurchaseOrderRepo {
	return &mockPurchaseOrderRepo{
		getByIDFunc: func(context.Context, uuid.UUID, uuid.UUID) (*domain.PurchaseOrder, error) {
			cp := *po
			cp.Items = append([]domain.PurchaseOrderItem(nil), po.Items...)
			return &cp, nil
		},
		updateStatusFunc: func(context.Context, *domain.PurchaseOrder, domain.PurchaseOrderStatus) error { return nil },
		applyReceiptFunc: func(context.Context, *domain.PurchaseOrder, []domain.Receipt) error { return nil },
	}
}

// ---------------------------------------------------------------------------
// POST /purchase-orders
// ---------------------------------------------------------------------------

func TestCreatePurchaseOrder(t *testing.T) {
	t.Parallel()

	tea := newProduct(uuid.New())

	t.Run("prices_lines_from_unit_cost", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			products: &mockProductRepo{
				getByIDFunc: func(_ context.Context, _, id uuid.UUID) (*domain.Product, error) {
					assert.Equal(t, tea.ID, id)
					return tea, nil
				},
			},
			purchaseOrders: &mockPurchaseOrderRepo{
				createFunc: func(_ context.Context, po *domain.PurchaseOrder) error {
					assert.Equal(t, domain.POStatusDraft, po.Status)
					assert.Equal(t, fixedUserID(), po.CreatedBy)
					require.Len(t, po.Items, 2)
					assert.Equal(t, "Green tea", po.Items[0].ProductName)
					po.Number = "PO-000001"
					return nil
				},
			},
		}
		v1.RegisterPurchaseOrderRoutes(api, store, nil, nil)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders", map[string]any{
			"vendor_name": "Tea Imports",
			"items": []map[string]any{
				{"product_id": tea.ID, "quantity": 10, "unit_cost": "1.25"},
				{"product_id": tea.ID, "quantity": 2, "unit_cost": "1.10"},
			},
		})
		require.Equal(t, http.StatusCreated, resp.Code)

		var body domain.PurchaseOrder
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "PO-000001", body.Number)
		assert.Equal(t, "14.70", body.Total.StringFixed(2))
	})

	t.Run("unknown_product", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			products: &mockProductRepo{
				getByIDFunc: func(context.Context, uuid.UUID, uuid.UUID) (*domain.Product, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterPurchaseOrderRoutes(api, store, nil, nil)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders", map[string]any{
			"vendor_name": "Tea Imports",
			"items":       []map[string]any{{"product_id": uuid.New(), "quantity": 1, "unit_cost": "1"}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Contains(t, resp.Body.String(), "does not exist")
	})
}

// ---------------------------------------------------------------------------
// Workflow transitions
// ---------------------------------------------------------------------------

func TestPurchaseOrderTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		verb string
		from domain.PurchaseOrderStatus
		ctx  func(uuid.UUID) context.Context
		want int
	}{
		{name: "member_submits", verb: "submit", from: domain.POStatusDraft, ctx: memberCtx, want: http.StatusOK},
		{name: "admin_approves", verb: "approve", from: domain.POStatusSubmitted, ctx: adminCtx, want: http.StatusOK},
		{name: "member_cannot_approve", verb: "approve", from: domain.POStatusSubmitted, ctx: memberCtx, want: http.StatusForbidden},
		{name: "approve_draft", verb: "approve", from: domain.POStatusDraft, ctx: adminCtx, want: http.StatusConflict},
		{name: "admin_returns", verb: "return", from: domain.POStatusSubmitted, ctx: adminCtx, want: http.StatusOK},
		{name: "cancel_approved", verb: "cancel", from: domain.POStatusApproved, ctx: memberCtx, want: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			po := approvedPO()
			po.Status = tc.from
			repo := poRepoWith(po)
			var saved *domain.PurchaseOrder
			repo.updateStatusFunc = func(_ context.Context, got *domain.PurchaseOrder, from domain.PurchaseOrderStatus) error {
				assert.Equal(t, tc.from, from)
				saved = got
				return nil
			}
			store := &mockDataStore{purchaseOrders: repo}
			v1.RegisterPurchaseOrderRoutes(api, store, nil, nil)

			resp := api.PostCtx(tc.ctx(fixedTenantID()), "/purchase-orders/"+po.ID.String()+"/"+tc.verb)
			require.Equal(t, tc.want, resp.Code)
			if tc.want != http.StatusOK {
				assert.Nil(t, saved)
				return
			}

			require.NotNil(t, saved)
			switch tc.verb {
			case "submit":
				assert.NotNil(t, saved.SubmittedAt)
			case "approve":
				require.NotNil(t, saved.ApprovedBy)
				assert.Equal(t, fixedUserID(), *saved.ApprovedBy)
			case "return":
				assert.Equal(t, domain.POStatusDraft, saved.Status)
				assert.Nil(t, saved.SubmittedAt)
			}
			assert.Equal(t, []string{"purchase_order." + tc.verb}, store.auditActions())
		})
	}
}

// ---------------------------------------------------------------------------
// POST /purchase-orders/{id}/receive
// ---------------------------------------------------------------------------

func TestReceivePurchaseOrder(t *testing.T) {
	t.Parallel()

	t.Run("partial_then_complete", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		po := approvedPO()
		events := &mockEvents{}
		v1.RegisterPurchaseOrderRoutes(api, &mockDataStore{purchaseOrders: poRepoWith(po)}, nil, events)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders/"+po.ID.String()+"/receive", map[string]any{
			"receipts": []map[string]any{
				{"item_id": po.Items[0].ID, "quantity": 10},
				{"item_id": po.Items[1].ID, "quantity": 5},
			},
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.PurchaseOrder
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, domain.POStatusReceived, body.Status)
		assert.NotNil(t, body.ReceivedAt)
		assert.Contains(t, events.types(), "product.updated")
	})

	t.Run("over_receipt", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		po := approvedPO()
		v1.RegisterPurchaseOrderRoutes(api, &mockDataStore{purchaseOrders: poRepoWith(po)}, nil, nil)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders/"+po.ID.String()+"/receive", map[string]any{
			"receipts": []map[string]any{{"item_id": po.Items[1].ID, "quantity": 6}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Contains(t, resp.Body.String(), "only 5 outstanding")
	})

	t.Run("not_approved", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		po := approvedPO()
		po.Status = domain.POStatusSubmitted
		v1.RegisterPurchaseOrderRoutes(api, &mockDataStore{purchaseOrders: poRepoWith(po)}, nil, nil)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders/"+po.ID.String()+"/receive", map[string]any{
			"receipts": []map[string]any{{"item_id": po.Items[0].ID, "quantity": 1}},
		})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestPurchaseOrderAttachment_Upload(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	po := approvedPO()
	v1.RegisterPurchaseOrderRoutes(api, &mockDataStore{purchaseOrders: poRepoWith(po)}, &mockStorage{}, nil)

	resp := api.PostCtx(memberCtx(fixedTenantID()), "/purchase-orders/"+po.ID.String()+"/attachment/upload", map[string]any{
		"content_type": "application/pdf",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body storage.PresignedURL
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, storage.OwnedBy(fixedTenantID(), storage.KindPOAttachment, body.Key), body.Key)
}
