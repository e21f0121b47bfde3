package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/billing"
	"github.com/gosuda/shopdesk/internal/domain"
)

type CourierBody struct {
	Name    string `json:"name" minLength:"1" maxLength:"255" doc:"Courier name"`
	Phone   string `json:"phone,omitempty" maxLength:"50"`
	Vehicle string `json:"vehicle,omitempty" maxLength:"100" doc:"e.g. bike, scooter, car"`
	Active  *bool  `json:"active,omitempty" doc:"Defaults to true"`
}

type CreateCourierInput struct {
	Body CourierBody
}

type UpdateCourierInput struct {
	ID   uuid.UUID `path:"id" doc:"Courier ID"`
	Body CourierBody
}

type CourierIDInput struct {
	ID uuid.UUID `path:"id" doc:"Courier ID"`
}

type CourierOutput struct {
	Body *domain.Courier
}

type ListCouriersInput struct {
	Status string `query:"status" enum:"offline,available,busy" doc:"Filter by status"`
}

type ListCouriersOutput struct {
	Body []*domain.Courier
}

type SetCourierStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Courier ID"`
	Body struct {
		Status string `json:"status" enum:"offline,available" doc:"busy is set by delivery assignment"`
	}
}

type UpdateLocationInput struct {
	ID   uuid.UUID `path:"id" doc:"Courier ID"`
	Body struct {
		Lat float64 `json:"lat" doc:"Latitude"`
		Lng float64 `json:"lng" doc:"Longitude"`
	}
}

type LocationOutput struct {
	Body domain.CourierLocation
}

type NearbyCouriersInput struct {
	Lat      float64 `query:"lat" required:"true" minimum:"-85.05112878" maximum:"85.05112878"`
	Lng      float64 `query:"lng" required:"true" minimum:"-180" maximum:"180"`
	RadiusKm float64 `query:"radius_km" default:"5" exclusiveMinimum:"0" maximum:"100" doc:"Search radius in kilometres"`
	Limit    int     `query:"limit" default:"10" minimum:"1" maximum:"100"`
}

type NearbyCouriersOutput struct {
	Body []domain.NearbyCourier
}

func RegisterCourierRoutes(api huma.API, store DataStore, plans PlanEnforcer, positions PositionCache, events Events) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-courier",
		Method:        http.MethodPost,
		Path:          "/couriers",
		Summary:       "Add a courier",
		Tags:          []string{"Couriers"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateCourierInput) (*CourierOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if err := plans.CheckLimit(ctx, tenantID, billing.ResourceCouriers); err != nil {
			return nil, apiError(ctx, err, "courier")
		}

		now := time.Now()
		c := &domain.Courier{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Status:    domain.CourierOffline,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyCourierBody(c, &input.Body)

		if err := store.Couriers().Create(ctx, c); err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		recordAudit(ctx, store, tenantID, "courier.created", "courier", c.ID, map[string]any{"name": c.Name})
		publishChange(ctx, events, tenantID, "courier", "created", c.ID)

		return &CourierOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-couriers",
		Method:      http.MethodGet,
		Path:        "/couriers",
		Summary:     "List couriers",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *ListCouriersInput) (*ListCouriersOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		cs, err := store.Couriers().List(ctx, tenantID, domain.CourierStatus(input.Status))
		if err != nil {
			return nil, apiError(ctx, err, "couriers")
		}
		return &ListCouriersOutput{Body: cs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "nearby-couriers",
		Method:      http.MethodGet,
		Path:        "/couriers/nearby",
		Summary:     "Find couriers near a point",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *NearbyCouriersInput) (*NearbyCouriersOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}
		if positions == nil {
			return nil, huma.Error503ServiceUnavailable("courier positions are not available")
		}
		if err := plans.RequireFeature(ctx, tenantID, domain.FeatureLiveTracking); err != nil {
			return nil, apiError(ctx, err, "couriers")
		}

		near, err := positions.Nearby(ctx, tenantID, input.Lat, input.Lng, input.RadiusKm, input.Limit)
		if err != nil {
			return nil, apiError(ctx, err, "couriers")
		}
		if near == nil {
			near = []domain.NearbyCourier{}
		}
		return &NearbyCouriersOutput{Body: near}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-courier",
		Method:      http.MethodGet,
		Path:        "/couriers/{id}",
		Summary:     "Get a courier by ID",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *CourierIDInput) (*CourierOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Couriers().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		return &CourierOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-courier",
		Method:      http.MethodPut,
		Path:        "/couriers/{id}",
		Summary:     "Update a courier",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *UpdateCourierInput) (*CourierOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Couriers().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		applyCourierBody(c, &input.Body)
		c.UpdatedAt = time.Now()

		if err := store.Couriers().Update(ctx, c); err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		recordAudit(ctx, store, tenantID, "courier.updated", "courier", c.ID, nil)
		publishChange(ctx, events, tenantID, "courier", "updated", c.ID)

		return &CourierOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-courier",
		Method:      http.MethodDelete,
		Path:        "/couriers/{id}",
		Summary:     "Remove a courier",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *CourierIDInput) (*struct{}, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Couriers().Delete(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		if positions != nil {
			if err := positions.Remove(ctx, tenantID, input.ID); err != nil {
				log.Warn().Err(err).Str("courier_id", input.ID.String()).Msg("couriers: drop cached position failed")
			}
		}
		recordAudit(ctx, store, tenantID, "courier.deleted", "courier", input.ID, nil)
		publishChange(ctx, events, tenantID, "courier", "deleted", input.ID)

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-courier-status",
		Method:      http.MethodPost,
		Path:        "/couriers/{id}/status",
		Summary:     "Put a courier on or off shift",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *SetCourierStatusInput) (*CourierOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Couriers().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		if c.Status == domain.CourierBusy {
			return nil, huma.Error409Conflict("courier is on a delivery")
		}
		status := domain.CourierStatus(input.Body.Status)
		if status == domain.CourierAvailable && !c.Active {
			return nil, huma.Error409Conflict("courier is deactivated")
		}

		if err := store.Couriers().SetStatus(ctx, tenantID, c.ID, status); err != nil {
			return nil, apiError(ctx, err, "courier")
		}
		c.Status = status
		recordAudit(ctx, store, tenantID, "courier.status_changed", "courier", c.ID, map[string]any{"status": string(status)})
		publishChange(ctx, events, tenantID, "courier", "updated", c.ID)

		return &CourierOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-courier-location",
		Method:      http.MethodPost,
		Path:        "/couriers/{id}/location",
		Summary:     "Report a courier position",
		Description: "Stores the position and streams it to /ws/couriers subscribers.",
		Tags:        []string{"Couriers"},
	}, func(ctx context.Context, input *UpdateLocationInput) (*LocationOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if err := plans.RequireFeature(ctx, tenantID, domain.FeatureLiveTracking); err != nil {
			return nil, apiError(ctx, err, "position")
		}

		pos := domain.Position{Lat: input.Body.Lat, Lng: input.Body.Lng, RecordedAt: time.Now().UTC()}
		if err := pos.Validate(); err != nil {
			return nil, apiError(ctx, err, "position")
		}
		if err := store.Couriers().SetPosition(ctx, tenantID, input.ID, pos); err != nil {
			return nil, apiError(ctx, err, "courier")
		}

		loc := domain.CourierLocation{CourierID: input.ID, Position: pos}
		if positions != nil {
			if err := positions.Set(ctx, tenantID, input.ID, pos); err != nil {
				log.Warn().Err(err).Str("courier_id", input.ID.String()).Msg("couriers: cache position failed")
			}
		}
		if events != nil {
			if err := events.PublishLocation(ctx, tenantID, loc); err != nil {
				log.Warn().Err(err).Str("courier_id", input.ID.String()).Msg("realtime: publish location failed")
			}
		}

		return &LocationOutput{Body: loc}, nil
	})
}

func applyCourierBody(c *domain.Courier, b *CourierBody) {
	c.Name = strings.TrimSpace(b.Name)
	c.Phone = strings.TrimSpace(b.Phone)
	c.Vehicle = strings.TrimSpace(b.Vehicle)
	if b.Active != nil {
		c.Active = *b.Active
	}
}
