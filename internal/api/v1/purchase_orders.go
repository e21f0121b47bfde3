package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/server/middleware"
	"github.com/gosuda/shopdesk/internal/storage"
)

type POLineBody struct {
	ProductID uuid.UUID       `json:"product_id" doc:"Product to restock"`
	Quantity  int             `json:"quantity" minimum:"1" doc:"Quantity ordered from the vendor"`
	UnitCost  decimal.Decimal `json:"unit_cost" doc:"Cost per unit, decimal string"`
}

type PurchaseOrderBody struct {
	VendorName  string       `json:"vendor_name" minLength:"1" maxLength:"255"`
	VendorEmail string       `json:"vendor_email,omitempty" maxLength:"255"`
	Items       []POLineBody `json:"items" minItems:"1"`
	ExpectedAt  *time.Time   `json:"expected_at,omitempty" doc:"Expected delivery date"`
	Notes       string       `json:"notes,omitempty" maxLength:"2000"`
}

type CreatePurchaseOrderInput struct {
	Body PurchaseOrderBody
}

type UpdatePurchaseOrderInput struct {
	ID   uuid.UUID `path:"id" doc:"Purchase order ID"`
	Body PurchaseOrderBody
}

type PurchaseOrderIDInput struct {
	ID uuid.UUID `path:"id" doc:"Purchase order ID"`
}

type PurchaseOrderOutput struct {
	Body *domain.PurchaseOrder
}

type ListPurchaseOrdersInput struct {
	Status string `query:"status" enum:"draft,submitted,approved,received,cancelled" doc:"Filter by status"`
	Page
}

type ListPurchaseOrdersOutput struct {
	Body []*domain.PurchaseOrder
}

type ReceivePurchaseOrderInput struct {
	ID   uuid.UUID `path:"id" doc:"Purchase order ID"`
	Body struct {
		Receipts []domain.Receipt `json:"receipts" minItems:"1" doc:"Quantities received per line item"`
	}
}

func RegisterPurchaseOrderRoutes(api huma.API, store DataStore, files ObjectStorage, events Events) {
	files = storageOrDisabled(files)

	huma.Register(api, huma.Operation{
		OperationID:   "create-purchase-order",
		Method:        http.MethodPost,
		Path:          "/purchase-orders",
		Summary:       "Draft a purchase order",
		Tags:          []string{"Purchase orders"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePurchaseOrderInput) (*PurchaseOrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		userID, _ := middleware.UserIDFromContext(ctx)

		now := time.Now()
		po := &domain.PurchaseOrder{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Status:    domain.POStatusDraft,
			CreatedBy: userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := applyPurchaseOrderBody(ctx, store, po, &input.Body); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}

		if err := store.PurchaseOrders().Create(ctx, po); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		recordAudit(ctx, store, tenantID, "purchase_order.created", "purchase_order", po.ID, map[string]any{
			"number": po.Number,
			"total":  po.Total.String(),
		})
		publishChange(ctx, events, tenantID, "purchase_order", "created", po.ID)

		return &PurchaseOrderOutput{Body: po}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-purchase-orders",
		Method:      http.MethodGet,
		Path:        "/purchase-orders",
		Summary:     "List purchase orders",
		Tags:        []string{"Purchase orders"},
	}, func(ctx context.Context, input *ListPurchaseOrdersInput) (*ListPurchaseOrdersOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		pos, err := store.PurchaseOrders().List(ctx, tenantID, domain.PurchaseOrderStatus(input.Status), input.Limit, input.Offset)
		if err != nil {
			return nil, apiError(ctx, err, "purchase orders")
		}
		return &ListPurchaseOrdersOutput{Body: pos}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-purchase-order",
		Method:      http.MethodGet,
		Path:        "/purchase-orders/{id}",
		Summary:     "Get a purchase order by ID",
		Tags:        []string{"Purchase orders"},
	}, func(ctx context.Context, input *PurchaseOrderIDInput) (*PurchaseOrderOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		return &PurchaseOrderOutput{Body: po}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-purchase-order",
		Method:      http.MethodPut,
		Path:        "/purchase-orders/{id}",
		Summary:     "Edit a draft purchase order",
		Tags:        []string{"Purchase orders"},
	}, func(ctx context.Context, input *UpdatePurchaseOrderInput) (*PurchaseOrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if !po.Status.Editable() {
			return nil, huma.Error409Conflict("only draft purchase orders can be edited")
		}
		if err := applyPurchaseOrderBody(ctx, store, po, &input.Body); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		po.UpdatedAt = time.Now()

		if err := store.PurchaseOrders().Update(ctx, po); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		recordAudit(ctx, store, tenantID, "purchase_order.updated", "purchase_order", po.ID, nil)
		publishChange(ctx, events, tenantID, "purchase_order", "updated", po.ID)

		return &PurchaseOrderOutput{Body: po}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-purchase-order",
		Method:      http.MethodDelete,
		Path:        "/purchase-orders/{id}",
		Summary:     "Delete a draft or cancelled purchase order",
		Tags:        []string{"Purchase orders"},
	}, func(ctx context.Context, input *PurchaseOrderIDInput) (*struct{}, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if err := store.PurchaseOrders().Delete(ctx, tenantID, po.ID); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		removeObject(ctx, files, po.AttachmentKey)
		recordAudit(ctx, store, tenantID, "purchase_order.deleted", "purchase_order", po.ID, map[string]any{"number": po.Number})
		publishChange(ctx, events, tenantID, "purchase_order", "deleted", po.ID)

		return nil, nil
	})

	transition := func(verb, summary string, to domain.PurchaseOrderStatus, adminOnly bool) {
		huma.Register(api, huma.Operation{
			OperationID: verb + "-purchase-order",
			Method:      http.MethodPost,
			Path:        "/purchase-orders/{id}/" + verb,
			Summary:     summary,
			Tags:        []string{"Purchase orders"},
		}, func(ctx context.Context, input *PurchaseOrderIDInput) (*PurchaseOrderOutput, error) {
			var tenantID uuid.UUID
			var err error
			if adminOnly {
				tenantID, err = requireAdmin(ctx)
			} else {
				tenantID, err = requireWriter(ctx)
			}
			if err != nil {
				return nil, err
			}

			po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
			if err != nil {
				return nil, apiError(ctx, err, "purchase order")
			}
			from := po.Status
			if !from.ValidTransition(to) {
				return nil, huma.Error409Conflict("purchase order cannot move from " + string(from) + " to " + string(to))
			}

			now := time.Now()
			po.Status = to
			po.UpdatedAt = now
			switch to {
			case domain.POStatusSubmitted:
				po.SubmittedAt = &now
			case domain.POStatusApproved:
				userID, _ := middleware.UserIDFromContext(ctx)
				po.ApprovedBy = &userID
				po.ApprovedAt = &now
			case domain.POStatusDraft:
				po.SubmittedAt = nil
			}

			if err := store.PurchaseOrders().UpdateStatus(ctx, po, from); err != nil {
				return nil, apiError(ctx, err, "purchase order")
			}
			recordAudit(ctx, store, tenantID, "purchase_order."+verb, "purchase_order", po.ID, map[string]any{
				"from": string(from),
				"to":   string(to),
			})
			publishChange(ctx, events, tenantID, "purchase_order", string(to), po.ID)

			return &PurchaseOrderOutput{Body: po}, nil
		})
	}
	transition("submit", "Submit a draft for approval", domain.POStatusSubmitted, false)
	transition("approve", "Approve a submitted purchase order", domain.POStatusApproved, true)
	transition("return", "Send a submitted purchase order back to draft", domain.POStatusDraft, true)
	transition("cancel", "Cancel a draft or submitted purchase order", domain.POStatusCancelled, false)

	huma.Register(api, huma.Operation{
		OperationID: "receive-purchase-order",
		Method:      http.MethodPost,
		Path:        "/purchase-orders/{id}/receive",
		Summary:     "Record goods received",
		Description: "Adds received quantities to stock. The order becomes received once every line is complete.",
		Tags:        []string{"Purchase orders", "Inventory"},
	}, func(ctx context.Context, input *ReceivePurchaseOrderInput) (*PurchaseOrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if err := po.Receive(input.Body.Receipts, time.Now()); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if err := store.PurchaseOrders().ApplyReceipt(ctx, po, input.Body.Receipts); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}

		recordAudit(ctx, store, tenantID, "purchase_order.received", "purchase_order", po.ID, map[string]any{
			"lines":    len(input.Body.Receipts),
			"complete": po.Status == domain.POStatusReceived,
		})
		publishChange(ctx, events, tenantID, "purchase_order", "received", po.ID)
		for _, it := range po.Items {
			publishChange(ctx, events, tenantID, "product", "updated", it.ProductID)
		}

		return &PurchaseOrderOutput{Body: po}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-purchase-order-attachment-upload",
		Method:      http.MethodPost,
		Path:        "/purchase-orders/{id}/attachment/upload",
		Summary:     "Get a presigned URL to upload a vendor document",
		Tags:        []string{"Purchase orders", "Files"},
	}, func(ctx context.Context, input *UploadRequestInput) (*PresignedOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}

		url, err := presignUpload(ctx, files, tenantID, storage.KindPOAttachment, input.Body.ContentType)
		if err != nil {
			return nil, apiError(ctx, err, "attachment")
		}
		return &PresignedOutput{Body: url}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-purchase-order-attachment",
		Method:      http.MethodPut,
		Path:        "/purchase-orders/{id}/attachment",
		Summary:     "Attach an uploaded document",
		Tags:        []string{"Purchase orders", "Files"},
	}, func(ctx context.Context, input *AttachKeyInput) (*PurchaseOrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if !storage.OwnedBy(tenantID, storage.KindPOAttachment, input.Body.Key) {
			return nil, huma.Error422UnprocessableEntity("key does not belong to this shop's purchase order files")
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if err := store.PurchaseOrders().SetAttachment(ctx, tenantID, po.ID, input.Body.Key); err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if po.AttachmentKey != input.Body.Key {
			removeObject(ctx, files, po.AttachmentKey)
		}
		po.AttachmentKey = input.Body.Key
		recordAudit(ctx, store, tenantID, "purchase_order.attachment_set", "purchase_order", po.ID, nil)
		publishChange(ctx, events, tenantID, "purchase_order", "updated", po.ID)

		return &PurchaseOrderOutput{Body: po}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-purchase-order-attachment",
		Method:      http.MethodGet,
		Path:        "/purchase-orders/{id}/attachment",
		Summary:     "Get a presigned URL to download the vendor document",
		Tags:        []string{"Purchase orders", "Files"},
	}, func(ctx context.Context, input *PurchaseOrderIDInput) (*PresignedOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		po, err := store.PurchaseOrders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "purchase order")
		}
		if po.AttachmentKey == "" {
			return nil, huma.Error404NotFound("purchase order has no attachment")
		}
		url, err := files.PresignGet(ctx, po.AttachmentKey)
		if err != nil {
			return nil, apiError(ctx, err, "attachment")
		}
		return &PresignedOutput{Body: url}, nil
	})
}

// applyPurchaseOrderBody copies header fields and resolves line products.
func applyPurchaseOrderBody(ctx context.Context, store DataStore, po *domain.PurchaseOrder, b *PurchaseOrderBody) error {
	po.VendorName = strings.TrimSpace(b.VendorName)
	po.VendorEmail = strings.TrimSpace(b.VendorEmail)
	po.ExpectedAt = b.ExpectedAt
	po.Notes = b.Notes

	lines := make([]domain.POLine, 0, len(b.Items))
	products := make(map[uuid.UUID]*domain.Product, len(b.Items))
	for _, it := range b.Items {
		lines = append(lines, domain.POLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: domain.RoundMoney(it.UnitCost)})
		if _, seen := products[it.ProductID]; seen {
			continue
		}
		p, err := store.Products().GetByID(ctx, po.TenantID, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("items", "product "+it.ProductID.String()+" does not exist")
		}
		if err != nil {
			return err
		}
		products[p.ID] = p
	}
	return po.SetItems(lines, products)
}
