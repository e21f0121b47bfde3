package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

type ListAuditInput struct {
	Page
}

type ListAuditByResourceInput struct {
	Resource   string    `path:"resource" doc:"Resource type, e.g. order or purchase_order"`
	ResourceID uuid.UUID `path:"id" doc:"Resource ID"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEntry
}

func RegisterAuditRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List the tenant's audit log, newest first",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		entries, err := store.Audit().ListByTenant(ctx, tenantID, input.Limit, input.Offset)
		if err != nil {
			return nil, apiError(ctx, err, "audit log")
		}
		return &ListAuditOutput{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-resource-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit/{resource}/{id}",
		Summary:     "History of one record",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditByResourceInput) (*ListAuditOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}

		entries, err := store.Audit().ListByResource(ctx, tenantID, input.Resource, input.ResourceID)
		if err != nil {
			return nil, apiError(ctx, err, "audit log")
		}
		return &ListAuditOutput{Body: entries}, nil
	})
}
