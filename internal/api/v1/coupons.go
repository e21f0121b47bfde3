package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/domain"
)

type CouponBody struct {
	Code           string          `json:"code" minLength:"1" maxLength:"50" doc:"Code customers type; stored upper-case"`
	Kind           string          `json:"kind" enum:"percent,fixed" doc:"Discount kind"`
	Value          decimal.Decimal `json:"value" doc:"Percent (0-100] or fixed amount, decimal string"`
	MinOrderTotal  decimal.Decimal `json:"min_order_total,omitempty" doc:"Minimum subtotal, decimal string"`
	MaxRedemptions int             `json:"max_redemptions,omitempty" minimum:"0" doc:"0 means unlimited"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	Active         *bool           `json:"active,omitempty" doc:"Defaults to true"`
}

type CreateCouponInput struct {
	Body CouponBody
}

type UpdateCouponInput struct {
	ID   uuid.UUID `path:"id" doc:"Coupon ID"`
	Body CouponBody
}

type CouponIDInput struct {
	ID uuid.UUID `path:"id" doc:"Coupon ID"`
}

type CouponOutput struct {
	Body *domain.Coupon
}

type ListCouponsOutput struct {
	Body []*domain.Coupon
}

type ValidateCouponInput struct {
	Body struct {
		Code     string          `json:"code" minLength:"1" doc:"Coupon code"`
		Subtotal decimal.Decimal `json:"subtotal" doc:"Order subtotal, decimal string"`
	}
}

type ValidateCouponOutput struct {
	Body struct {
		Code     string          `json:"code"`
		Valid    bool            `json:"valid"`
		Discount decimal.Decimal `json:"discount"`
		Reason   string          `json:"reason,omitempty"`
	}
}

func RegisterCouponRoutes(api huma.API, store DataStore, events Events) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-coupon",
		Method:        http.MethodPost,
		Path:          "/coupons",
		Summary:       "Create a coupon",
		Tags:          []string{"Coupons"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateCouponInput) (*CouponOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		c := &domain.Coupon{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyCouponBody(c, &input.Body)
		if err := c.Validate(); err != nil {
			return nil, apiError(ctx, err, "coupon")
		}

		if err := store.Coupons().Create(ctx, c); err != nil {
			return nil, apiError(ctx, err, "coupon")
		}
		recordAudit(ctx, store, tenantID, "coupon.created", "coupon", c.ID, map[string]any{"code": c.Code})
		publishChange(ctx, events, tenantID, "coupon", "created", c.ID)

		return &CouponOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-coupons",
		Method:      http.MethodGet,
		Path:        "/coupons",
		Summary:     "List coupons",
		Tags:        []string{"Coupons"},
	}, func(ctx context.Context, _ *struct{}) (*ListCouponsOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		coupons, err := store.Coupons().List(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "coupons")
		}
		return &ListCouponsOutput{Body: coupons}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-coupon",
		Method:      http.MethodGet,
		Path:        "/coupons/{id}",
		Summary:     "Get a coupon by ID",
		Tags:        []string{"Coupons"},
	}, func(ctx context.Context, input *CouponIDInput) (*CouponOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Coupons().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "coupon")
		}
		return &CouponOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-coupon",
		Method:      http.MethodPut,
		Path:        "/coupons/{id}",
		Summary:     "Update a coupon",
		Tags:        []string{"Coupons"},
	}, func(ctx context.Context, input *UpdateCouponInput) (*CouponOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		c, err := store.Coupons().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "coupon")
		}
		applyCouponBody(c, &input.Body)
		c.UpdatedAt = time.Now()
		if err := c.Validate(); err != nil {
			return nil, apiError(ctx, err, "coupon")
		}

		if err := store.Coupons().Update(ctx, c); err != nil {
			return nil, apiError(ctx, err, "coupon")
		}
		recordAudit(ctx, store, tenantID, "coupon.updated", "coupon", c.ID, nil)
		publishChange(ctx, events, tenantID, "coupon", "updated", c.ID)

		return &CouponOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-coupon",
		Method:      http.MethodDelete,
		Path:        "/coupons/{id}",
		Summary:     "Delete a coupon",
		Tags:        []string{"Coupons"},
	}, func(ctx context.Context, input *CouponIDInput) (*struct{}, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Coupons().Delete(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "coupon")
		}
		recordAudit(ctx, store, tenantID, "coupon.deleted", "coupon", input.ID, nil)
		publishChange(ctx, events, tenantID, "coupon", "deleted", input.ID)

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-coupon",
		Method:      http.MethodPost,
		Path:        "/coupons/validate",
		Summary:     "Check a code against a subtotal",
		Description: "Answers 200 with valid=false and a reason when the coupon exists but cannot be used.",
		Tags:        []string{"Coupons"},
	}, func(ctx context.Context, input *ValidateCouponInput) (*ValidateCouponOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		code := domain.NormalizeCouponCode(input.Body.Code)
		c, err := store.Coupons().GetByCode(ctx, tenantID, code)
		if err != nil {
			return nil, apiError(ctx, err, "coupon")
		}

		out := &ValidateCouponOutput{}
		out.Body.Code = c.Code
		off, err := c.Discount(input.Body.Subtotal, time.Now())
		if err != nil {
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				return nil, apiError(ctx, err, "coupon")
			}
			out.Body.Reason = verr.Message
			return out, nil
		}
		out.Body.Valid = true
		out.Body.Discount = off
		return out, nil
	})
}

func applyCouponBody(c *domain.Coupon, b *CouponBody) {
	c.Code = domain.NormalizeCouponCode(b.Code)
	c.Kind = domain.CouponKind(b.Kind)
	c.Value = b.Value
	c.MinOrderTotal = b.MinOrderTotal
	c.MaxRedemptions = b.MaxRedemptions
	c.ValidFrom = b.ValidFrom
	c.ValidTo = b.ValidTo
	if b.Active != nil {
		c.Active = *b.Active
	}
}
