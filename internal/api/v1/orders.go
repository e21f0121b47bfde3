package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/domain"
)

type OrderLineBody struct {
	ProductID uuid.UUID `json:"product_id" doc:"Product ID"`
	Quantity  int       `json:"quantity" minimum:"1" doc:"Quantity"`
}

type CreateOrderInput struct {
	Body struct {
		CustomerName    string          `json:"customer_name" minLength:"1" maxLength:"255" doc:"Customer name"`
		CustomerPhone   string          `json:"customer_phone,omitempty" maxLength:"50"`
		DeliveryAddress string          `json:"delivery_address,omitempty" maxLength:"1000"`
		Items           []OrderLineBody `json:"items" minItems:"1" doc:"Ordered products"`
		DeliveryFee     decimal.Decimal `json:"delivery_fee,omitempty" doc:"Delivery fee, decimal string"`
		CouponCode      string          `json:"coupon_code,omitempty" doc:"Coupon to apply"`
		Notes           string          `json:"notes,omitempty" maxLength:"2000"`
	}
}

type OrderOutput struct {
	Body *domain.Order
}

type ListOrdersInput struct {
	Status string    `query:"status" enum:"pending,confirmed,preparing,out_for_delivery,delivered,cancelled" doc:"Filter by status"`
	From   time.Time `query:"from" doc:"Created at or after (RFC 3339)"`
	To     time.Time `query:"to" doc:"Created before (RFC 3339)"`
	Page
}

type ListOrdersOutput struct {
	Body []*domain.Order
}

type OrderIDInput struct {
	ID uuid.UUID `path:"id" doc:"Order ID"`
}

type TransitionOrderInput struct {
	ID   uuid.UUID `path:"id" doc:"Order ID"`
	Body struct {
		Status string `json:"status" enum:"confirmed,preparing,out_for_delivery,delivered,cancelled" doc:"Target status"`
	}
}

func RegisterOrderRoutes(api huma.API, store DataStore, notifier Notifier, events Events, rec Recorder) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Place an order",
		Description:   "Prices items from current products, reserves stock and redeems the coupon in one transaction.",
		Tags:          []string{"Orders"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateOrderInput) (*OrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if err := domain.NonNegative("delivery_fee", input.Body.DeliveryFee); err != nil {
			return nil, apiError(ctx, err, "order")
		}

		now := time.Now()
		lines := make([]domain.OrderLine, 0, len(input.Body.Items))
		for _, it := range input.Body.Items {
			lines = append(lines, domain.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		draft := &domain.OrderDraft{
			Order: &domain.Order{
				ID:              uuid.New(),
				TenantID:        tenantID,
				CustomerName:    input.Body.CustomerName,
				CustomerPhone:   input.Body.CustomerPhone,
				DeliveryAddress: input.Body.DeliveryAddress,
				DeliveryFee:     domain.RoundMoney(input.Body.DeliveryFee),
				Status:          domain.OrderStatusPending,
				Notes:           input.Body.Notes,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			Lines:      lines,
			CouponCode: domain.NormalizeCouponCode(input.Body.CouponCode),
		}

		order, err := store.Orders().Place(ctx, draft)
		if err != nil {
			return nil, apiError(ctx, err, "order")
		}
		if rec != nil {
			rec.OrderCreated()
		}
		recordAudit(ctx, store, tenantID, "order.created", "order", order.ID, map[string]any{
			"number": order.Number,
			"total":  order.Total.String(),
		})
		publishChange(ctx, events, tenantID, "order", "created", order.ID)
		notifyOrder(notifier, tenantID, "order.created", order)

		return &OrderOutput{Body: order}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		f := domain.OrderFilter{
			Status: domain.OrderStatus(input.Status),
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if !input.From.IsZero() {
			f.From = &input.From
		}
		if !input.To.IsZero() {
			f.To = &input.To
		}
		if f.From != nil && f.To != nil && !f.To.After(*f.From) {
			return nil, huma.Error422UnprocessableEntity("to must be after from")
		}

		orders, err := store.Orders().List(ctx, tenantID, f)
		if err != nil {
			return nil, apiError(ctx, err, "orders")
		}
		return &ListOrdersOutput{Body: orders}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{id}",
		Summary:     "Get an order by ID",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *OrderIDInput) (*OrderOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		order, err := store.Orders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "order")
		}
		return &OrderOutput{Body: order}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-order",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/status",
		Summary:     "Move an order to another status",
		Description: "pending -> confirmed -> preparing -> out_for_delivery -> delivered; cancel from pending, confirmed or preparing.",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *TransitionOrderInput) (*OrderOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		order, err := store.Orders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "order")
		}

		from, to := order.Status, domain.OrderStatus(input.Body.Status)
		if !from.ValidTransition(to) {
			return nil, huma.Error409Conflict("order cannot move from " + string(from) + " to " + string(to))
		}
		if err := store.Orders().UpdateStatus(ctx, tenantID, order.ID, from, to); err != nil {
			return nil, apiError(ctx, err, "order")
		}
		order.Status = to
		order.UpdatedAt = time.Now()

		recordAudit(ctx, store, tenantID, "order.status_changed", "order", order.ID, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		publishChange(ctx, events, tenantID, "order", string(to), order.ID)
		notifyOrder(notifier, tenantID, "order."+string(to), order)

		return &OrderOutput{Body: order}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-order",
		Method:      http.MethodDelete,
		Path:        "/orders/{id}",
		Summary:     "Delete a pending or cancelled order",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *OrderIDInput) (*struct{}, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		order, err := store.Orders().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "order")
		}
		if !order.Status.Deletable() {
			return nil, huma.Error409Conflict("only pending or cancelled orders can be deleted")
		}

		if err := store.Orders().Delete(ctx, tenantID, order.ID); err != nil {
			return nil, apiError(ctx, err, "order")
		}
		recordAudit(ctx, store, tenantID, "order.deleted", "order", order.ID, map[string]any{"number": order.Number})
		publishChange(ctx, events, tenantID, "order", "deleted", order.ID)

		return nil, nil
	})
}

// notifyOrder fires the tenant's template for key, if any, without blocking the request.
func notifyOrder(notifier Notifier, tenantID uuid.UUID, key string, o *domain.Order) {
	if notifier == nil {
		return
	}
	notifier.NotifyAsync(tenantID, key, map[string]any{
		"Number":       o.Number,
		"Status":       string(o.Status),
		"CustomerName": o.CustomerName,
		"Total":        o.Total.StringFixed(domain.MoneyScale),
		"ItemCount":    len(o.Items),
	})
}
