package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/billing"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/storage"
)

type ProductBody struct {
	SKU               string          `json:"sku" minLength:"1" maxLength:"64" doc:"Stock keeping unit, unique per shop"`
	Name              string          `json:"name" minLength:"1" maxLength:"255" doc:"Product name"`
	Description       string          `json:"description,omitempty" doc:"Description"`
	Category          string          `json:"category,omitempty" maxLength:"100" doc:"Category"`
	Price             decimal.Decimal `json:"price" doc:"Unit price, decimal string"`
	Cost              decimal.Decimal `json:"cost" doc:"Unit cost, decimal string"`
	LowStockThreshold int             `json:"low_stock_threshold" minimum:"0" doc:"Alert when stock falls to this level"`
	Active            *bool           `json:"active,omitempty" doc:"Available for sale; defaults to true"`
}

type CreateProductInput struct {
	Body struct {
		ProductBody
		StockQuantity int `json:"stock_quantity" minimum:"0" doc:"Opening stock"`
	}
}

type ProductOutput struct {
	Body *domain.Product
}

type ListProductsInput struct {
	Page
	Category   string `query:"category" doc:"Filter by category"`
	ActiveOnly bool   `query:"active_only" doc:"Only products available for sale"`
	Search     string `query:"q" doc:"Match SKU or name"`
}

type ListProductsOutput struct {
	Body []*domain.Product
}

type ProductIDInput struct {
	ID uuid.UUID `path:"id" doc:"Product ID"`
}

type UpdateProductInput struct {
	ID   uuid.UUID `path:"id" doc:"Product ID"`
	Body ProductBody
}

type AdjustStockInput struct {
	ID   uuid.UUID `path:"id" doc:"Product ID"`
	Body struct {
		Delta  int    `json:"delta" doc:"Quantity to add (positive) or remove (negative)"`
		Reason string `json:"reason" enum:"adjustment,stock_count,damaged" doc:"Why stock changed"`
		Note   string `json:"note,omitempty" maxLength:"500" doc:"Free-form note"`
	}
}

type StockMovementOutput struct {
	Body *domain.StockMovement
}

type ListMovementsInput struct {
	ID    uuid.UUID `path:"id" doc:"Product ID"`
	Limit int       `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
}

type ListMovementsOutput struct {
	Body []*domain.StockMovement
}

type UploadRequestInput struct {
	ID   uuid.UUID `path:"id"`
	Body struct {
		ContentType string `json:"content_type" minLength:"1" doc:"MIME type of the file to upload"`
	}
}

type AttachKeyInput struct {
	ID   uuid.UUID `path:"id"`
	Body struct {
		Key string `json:"key" minLength:"1" doc:"Object key returned by the upload request"`
	}
}

type PresignedOutput struct {
	Body *storage.PresignedURL
}

func RegisterProductRoutes(api huma.API, store DataStore, plans PlanEnforcer, files ObjectStorage, events Events) {
	files = storageOrDisabled(files)

	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/products",
		Summary:       "Create a product",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateProductInput) (*ProductOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if err := plans.CheckLimit(ctx, tenantID, billing.ResourceProducts); err != nil {
			return nil, apiError(ctx, err, "product")
		}

		now := time.Now()
		p := &domain.Product{
			ID:            uuid.New(),
			TenantID:      tenantID,
			StockQuantity: input.Body.StockQuantity,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyProductBody(p, &input.Body.ProductBody)
		if err := p.Validate(); err != nil {
			return nil, apiError(ctx, err, "product")
		}

		if err := store.Products().Create(ctx, p); err != nil {
			return nil, apiError(ctx, err, "product")
		}
		recordAudit(ctx, store, tenantID, "product.created", "product", p.ID, map[string]any{"sku": p.SKU})
		publishChange(ctx, events, tenantID, "product", "created", p.ID)

		return &ProductOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/products",
		Summary:     "List products",
		Tags:        []string{"Products"},
	}, func(ctx context.Context, input *ListProductsInput) (*ListProductsOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		products, err := store.Products().List(ctx, tenantID, domain.ProductFilter{
			Category:   input.Category,
			ActiveOnly: input.ActiveOnly,
			Search:     input.Search,
			Limit:      input.Limit,
			Offset:     input.Offset,
		})
		if err != nil {
			return nil, apiError(ctx, err, "products")
		}
		return &ListProductsOutput{Body: products}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-low-stock-products",
		Method:      http.MethodGet,
		Path:        "/products/low-stock",
		Summary:     "List products at or below their low-stock threshold",
		Tags:        []string{"Products", "Inventory"},
	}, func(ctx context.Context, _ *struct{}) (*ListProductsOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		products, err := store.Products().ListLowStock(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "products")
		}
		return &ListProductsOutput{Body: products}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/products/{id}",
		Summary:     "Get a product by ID",
		Tags:        []string{"Products"},
	}, func(ctx context.Context, input *ProductIDInput) (*ProductOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		p, err := store.Products().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		return &ProductOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-product",
		Method:      http.MethodPut,
		Path:        "/products/{id}",
		Summary:     "Update a product",
		Description: "Stock is changed through stock adjustments, not here.",
		Tags:        []string{"Products"},
	}, func(ctx context.Context, input *UpdateProductInput) (*ProductOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		p, err := store.Products().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		applyProductBody(p, &input.Body)
		p.UpdatedAt = time.Now()
		if err := p.Validate(); err != nil {
			return nil, apiError(ctx, err, "product")
		}

		if err := store.Products().Update(ctx, p); err != nil {
			return nil, apiError(ctx, err, "product")
		}
		recordAudit(ctx, store, tenantID, "product.updated", "product", p.ID, nil)
		publishChange(ctx, events, tenantID, "product", "updated", p.ID)

		return &ProductOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-product",
		Method:      http.MethodDelete,
		Path:        "/products/{id}",
		Summary:     "Delete a product",
		Description: "Products referenced by orders or purchase orders cannot be deleted; deactivate them instead.",
		Tags:        []string{"Products"},
	}, func(ctx context.Context, input *ProductIDInput) (*struct{}, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		p, err := store.Products().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		if err := store.Products().Delete(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "product")
		}
		removeObject(ctx, files, p.ImageKey)
		recordAudit(ctx, store, tenantID, "product.deleted", "product", input.ID, map[string]any{"sku": p.SKU})
		publishChange(ctx, events, tenantID, "product", "deleted", input.ID)

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "adjust-stock",
		Method:        http.MethodPost,
		Path:          "/products/{id}/stock-adjustments",
		Summary:       "Adjust a product's stock",
		Tags:          []string{"Products", "Inventory"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AdjustStockInput) (*StockMovementOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if input.Body.Delta == 0 {
			return nil, huma.Error422UnprocessableEntity("delta must not be zero")
		}

		m, err := store.Products().AdjustStock(ctx, tenantID, input.ID, input.Body.Delta, input.Body.Reason, input.Body.Note)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		recordAudit(ctx, store, tenantID, "product.stock_adjusted", "product", input.ID, map[string]any{
			"delta":  m.Delta,
			"reason": m.Reason,
			"stock":  m.StockAfter,
		})
		publishChange(ctx, events, tenantID, "product", "stock_changed", input.ID)

		return &StockMovementOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stock-movements",
		Method:      http.MethodGet,
		Path:        "/products/{id}/stock-movements",
		Summary:     "List a product's inventory movements, newest first",
		Tags:        []string{"Products", "Inventory"},
	}, func(ctx context.Context, input *ListMovementsInput) (*ListMovementsOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		ms, err := store.Products().ListMovements(ctx, tenantID, input.ID, input.Limit)
		if err != nil {
			return nil, apiError(ctx, err, "stock movements")
		}
		return &ListMovementsOutput{Body: ms}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-product-image-upload",
		Method:      http.MethodPost,
		Path:        "/products/{id}/image/upload",
		Summary:     "Get a presigned URL to upload a product image",
		Tags:        []string{"Products", "Files"},
	}, func(ctx context.Context, input *UploadRequestInput) (*PresignedOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := store.Products().GetByID(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "product")
		}

		url, err := presignUpload(ctx, files, tenantID, storage.KindProductImage, input.Body.ContentType)
		if err != nil {
			return nil, apiError(ctx, err, "image")
		}
		return &PresignedOutput{Body: url}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-product-image",
		Method:      http.MethodPut,
		Path:        "/products/{id}/image",
		Summary:     "Attach an uploaded image to a product",
		Tags:        []string{"Products", "Files"},
	}, func(ctx context.Context, input *AttachKeyInput) (*ProductOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		if !storage.OwnedBy(tenantID, storage.KindProductImage, input.Body.Key) {
			return nil, huma.Error422UnprocessableEntity("key does not belong to this shop's product images")
		}

		p, err := store.Products().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		if err := store.Products().SetImage(ctx, tenantID, input.ID, input.Body.Key); err != nil {
			return nil, apiError(ctx, err, "product")
		}
		recordAudit(ctx, store, tenantID, "product.image_set", "product", input.ID, map[string]any{"key": input.Body.Key})
		if p.ImageKey != input.Body.Key {
			removeObject(ctx, files, p.ImageKey)
		}
		p.ImageKey = input.Body.Key
		publishChange(ctx, events, tenantID, "product", "updated", p.ID)

		return &ProductOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-product-image",
		Method:      http.MethodGet,
		Path:        "/products/{id}/image",
		Summary:     "Get a presigned URL to download a product image",
		Tags:        []string{"Products", "Files"},
	}, func(ctx context.Context, input *ProductIDInput) (*PresignedOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		p, err := store.Products().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "product")
		}
		if p.ImageKey == "" {
			return nil, huma.Error404NotFound("product has no image")
		}
		url, err := files.PresignGet(ctx, p.ImageKey)
		if err != nil {
			return nil, apiError(ctx, err, "image")
		}
		return &PresignedOutput{Body: url}, nil
	})
}

func applyProductBody(p *domain.Product, b *ProductBody) {
	p.SKU = strings.TrimSpace(b.SKU)
	p.Name = strings.TrimSpace(b.Name)
	p.Description = b.Description
	p.Category = strings.TrimSpace(b.Category)
	p.Price = b.Price
	p.Cost = b.Cost
	p.LowStockThreshold = b.LowStockThreshold
	if b.Active != nil {
		p.Active = *b.Active
	}
}

func presignUpload(ctx context.Context, files ObjectStorage, tenantID uuid.UUID, kind storage.Kind, contentType string) (*storage.PresignedURL, error) {
	ext, err := storage.Extension(kind, contentType)
	if err != nil {
		return nil, err
	}
	return files.PresignPut(ctx, storage.NewKey(tenantID, kind, ext), contentType)
}

// removeObject deletes a replaced or orphaned file. Failures only leave garbage
// in the bucket, so they are logged.
func removeObject(ctx context.Context, files ObjectStorage, key string) {
	if key == "" {
		return
	}
	if err := files.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("storage: delete failed")
	}
}
