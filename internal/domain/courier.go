package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CourierStatus string

const (
	CourierOffline   CourierStatus = "offline"
	CourierAvailable CourierStatus = "available"
	CourierBusy      CourierStatus = "busy"
)

func (s CourierStatus) IsValid() bool {
	return s == CourierOffline || s == CourierAvailable || s == CourierBusy
}

type Position struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MaxGeoLat is the latitude limit of Redis GEO (web mercator).
const MaxGeoLat = 85.05112878

// Validate rejects coordinates the position index cannot store.
func (p Position) Validate() error {
	if p.Lat < -MaxGeoLat || p.Lat > MaxGeoLat {
		return Invalid("lat", "must be between -85.05112878 and 85.05112878")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return Invalid("lng", "must be between -180 and 180")
	}
	return nil
}

type Courier struct {
	ID           uuid.UUID     `json:"id"`
	TenantID     uuid.UUID     `json:"tenant_id"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone,omitempty"`
	Vehicle      string        `json:"vehicle,omitempty"`
	Status       CourierStatus `json:"status"`
	Active       bool          `json:"active"`
	LastPosition *Position     `json:"last_position,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CourierLocation is what the realtime channel carries for a position update.
type CourierLocation struct {
	CourierID uuid.UUID `json:"courier_id"`
	Position
}

// NearbyCourier is a courier with its distance from a query point.
type NearbyCourier struct {
	CourierID  uuid.UUID `json:"courier_id"`
	DistanceKm float64   `json:"distance_km"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
}

type CourierRepository interface {
	Create(ctx context.Context, c *Courier) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Courier, error)
	List(ctx context.Context, tenantID uuid.UUID, status CourierStatus) ([]*Courier, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
	Update(ctx context.Context, c *Courier) error
	SetStatus(ctx context.Context, tenantID, id uuid.UUID, status CourierStatus) error
	SetPosition(ctx context.Context, tenantID, id uuid.UUID, pos Position) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// ValidTransition: assigned->picked_up|failed, picked_up->delivered|failed.
func (s DeliveryStatus) ValidTransition(to DeliveryStatus) bool {
	switch s {
	case DeliveryAssigned:
		return to == DeliveryPickedUp || to == DeliveryFailed
	case DeliveryPickedUp:
		return to == DeliveryDelivered || to == DeliveryFailed
	default:
		return false
	}
}

func (s DeliveryStatus) IsActive() bool {
	return s == DeliveryAssigned || s == DeliveryPickedUp
}

// OrderStatusFor maps a delivery status to the status its order should move to,
// or "" when the order is left alone.
func (s DeliveryStatus) OrderStatusFor() OrderStatus {
	switch s {
	case DeliveryPickedUp:
		return OrderStatusOutForDelivery
	case DeliveryDelivered:
		return OrderStatusDelivered
	default:
		return ""
	}
}

// Assignable reports whether an order in this status can be handed to a courier.
func (s OrderStatus) Assignable() bool {
	return s == OrderStatusConfirmed || s == OrderStatusPreparing
}

type Delivery struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	CourierID   uuid.UUID       `json:"courier_id"`
	Status      DeliveryStatus  `json:"status"`
	Fee         decimal.Decimal `json:"fee"`
	Note        string          `json:"note,omitempty"`
	AssignedAt  time.Time       `json:"assigned_at"`
	PickedUpAt  *time.Time      `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type DeliveryRepository interface {
	// Assign creates the delivery and marks the courier busy in one transaction.
	// It fails with ErrConflict if the order already has an active delivery or
	// the courier is not available.
	Assign(ctx context.Context, d *Delivery) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Delivery, error)
	ListByCourier(ctx context.Context, tenantID, courierID uuid.UUID) ([]*Delivery, error)
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]*Delivery, error)
	// Transition moves the delivery, its order and its courier together.
	Transition(ctx context.Context, tenantID, id uuid.UUID, from, to DeliveryStatus, at time.Time) error
}
