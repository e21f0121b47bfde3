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

type AssignDeliveryInput struct {
	Body struct {
		OrderID   uuid.UUID       `json:"order_id" doc:"Order to deliver"`
		CourierID uuid.UUID       `json:"courier_id" doc:"Available courier"`
		Fee       decimal.Decimal `json:"fee,omitempty" doc:"Courier fee, decimal string"`
		Note      string          `json:"note,omitempty" maxLength:"1000"`
	}
}

type DeliveryOutput struct {
	Body *domain.Delivery
}

type ListDeliveriesOutput struct {
	Body []*domain.Delivery
}

type DeliveryIDInput struct {
	ID uuid.UUID `path:"id" doc:"Delivery ID"`
}

type TransitionDeliveryInput struct {
	ID   uuid.UUID `path:"id" doc:"Delivery ID"`
	Body struct {
		Status string `json:"status" enum:"picked_up,delivered,failed" doc:"Target status"`
	}
}

func RegisterDeliveryRoutes(api huma.API, store DataStore, notifier Notifier, events Events) {
	huma.Register(api, huma.Operation{
		OperationID:   "assign-delivery",
		Method:        http.MethodPost,
		Path:          "/deliveries",
		Summary:       "Hand an order to a courier",
		Description:   "The order must be confirmed or preparing and the courier available. The courier becomes busy.",
		Tags:          []string{"Deliveries"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AssignDeliveryInput) (*DeliveryOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if err := domain.NonNegative("fee", input.Body.Fee); err != nil {
			return nil, apiError(ctx, err, "delivery")
		}

		order, err := store.Orders().GetByID(ctx, tenantID, input.Body.OrderID)
		if err != nil {
			return nil, apiError(ctx, err, "order")
		}
		if !order.Status.Assignable() {
			return nil, huma.Error409Conflict("order " + order.Number + " is " + string(order.Status) + " and cannot be assigned")
		}

		now := time.Now()
		d := &domain.Delivery{
			ID:         uuid.New(),
			TenantID:   tenantID,
			OrderID:    order.ID,
			CourierID:  input.Body.CourierID,
			Status:     domain.DeliveryAssigned,
			Fee:        domain.RoundMoney(input.Body.Fee),
			Note:       input.Body.Note,
			AssignedAt: now,
			UpdatedAt:  now,
		}
		if err := store.Deliveries().Assign(ctx, d); err != nil {
			return nil, apiError(ctx, err, "delivery")
		}
		recordAudit(ctx, store, tenantID, "delivery.assigned", "delivery", d.ID, map[string]any{
			"order_id":   d.OrderID.String(),
			"courier_id": d.CourierID.String(),
		})
		publishChange(ctx, events, tenantID, "delivery", "assigned", d.ID)
		publishChange(ctx, events, tenantID, "courier", "updated", d.CourierID)

		return &DeliveryOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-active-deliveries",
		Method:      http.MethodGet,
		Path:        "/deliveries",
		Summary:     "List deliveries in progress",
		Tags:        []string{"Deliveries"},
	}, func(ctx context.Context, _ *struct{}) (*ListDeliveriesOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		ds, err := store.Deliveries().ListActive(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "deliveries")
		}
		return &ListDeliveriesOutput{Body: ds}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-courier-deliveries",
		Method:      http.MethodGet,
		Path:        "/couriers/{id}/deliveries",
		Summary:     "List a courier's deliveries",
		Tags:        []string{"Deliveries", "Couriers"},
	}, func(ctx context.Context, input *CourierIDInput) (*ListDeliveriesOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		ds, err := store.Deliveries().ListByCourier(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "deliveries")
		}
		return &ListDeliveriesOutput{Body: ds}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-delivery",
		Method:      http.MethodGet,
		Path:        "/deliveries/{id}",
		Summary:     "Get a delivery by ID",
		Tags:        []string{"Deliveries"},
	}, func(ctx context.Context, input *DeliveryIDInput) (*DeliveryOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		d, err := store.Deliveries().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "delivery")
		}
		return &DeliveryOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-delivery",
		Method:      http.MethodPost,
		Path:        "/deliveries/{id}/status",
		Summary:     "Record pickup, completion or failure",
		Description: "Pickup moves the order out for delivery; completion marks it delivered and frees the courier.",
		Tags:        []string{"Deliveries"},
	}, func(ctx context.Context, input *TransitionDeliveryInput) (*DeliveryOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		d, err := store.Deliveries().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "delivery")
		}
		from, to := d.Status, domain.DeliveryStatus(input.Body.Status)
		if !from.ValidTransition(to) {
			return nil, huma.Error409Conflict("delivery cannot move from " + string(from) + " to " + string(to))
		}

		now := time.Now()
		if err := store.Deliveries().Transition(ctx, tenantID, d.ID, from, to, now); err != nil {
			return nil, apiError(ctx, err, "delivery")
		}
		d.Status = to
		d.UpdatedAt = now
		switch to {
		case domain.DeliveryPickedUp:
			d.PickedUpAt = &now
		case domain.DeliveryDelivered, domain.DeliveryFailed:
			d.CompletedAt = &now
		}

		recordAudit(ctx, store, tenantID, "delivery."+string(to), "delivery", d.ID, nil)
		publishChange(ctx, events, tenantID, "delivery", string(to), d.ID)
		publishChange(ctx, events, tenantID, "order", "updated", d.OrderID)
		publishChange(ctx, events, tenantID, "courier", "updated", d.CourierID)

		if next := to.OrderStatusFor(); next != "" {
			if order, err := store.Orders().GetByID(ctx, tenantID, d.OrderID); err == nil {
				notifyOrder(notifier, tenantID, "order."+string(next), order)
			}
		}

		return &DeliveryOutput{Body: d}, nil
	})
}
