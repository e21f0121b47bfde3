package v1

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/server/middleware"
	"github.com/gosuda/shopdesk/internal/storage"
)

// Roles allowed to change tenant data. Viewers only read.
var writers = []string{middleware.RoleAdmin, middleware.RoleMember} //nolint:gochecknoglobals // role set

func tenantFrom(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, huma.Error403Forbidden("missing tenant context")
	}
	return tenantID, nil
}

// requireRole returns the tenant when the caller holds one of roles.
func requireRole(ctx context.Context, roles ...string) (uuid.UUID, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	role, _ := middleware.RoleFromContext(ctx)
	if !middleware.HasRole(role, roles...) {
		return uuid.Nil, huma.Error403Forbidden("insufficient permissions")
	}
	return tenantID, nil
}

func requireWriter(ctx context.Context) (uuid.UUID, error) {
	return requireRole(ctx, writers...)
}

func requireAdmin(ctx context.Context) (uuid.UUID, error) {
	return requireRole(ctx, middleware.RoleAdmin)
}

func requireSuperAdmin(ctx context.Context) error {
	role, _ := middleware.RoleFromContext(ctx)
	if role != middleware.RoleSuperAdmin {
		return huma.Error403Forbidden("superadmin role required")
	}
	return nil
}

// recordAudit writes an audit entry. Failures are logged; the mutation has
// already happened and is not rolled back.
func recordAudit(ctx context.Context, store DataStore, tenantID uuid.UUID, action, resource string, resourceID uuid.UUID, details map[string]any) {
	actorID := ""
	if uid, ok := middleware.UserIDFromContext(ctx); ok {
		actorID = uid.String()
	}
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ActorType:  middleware.ActorTypeFromContext(ctx),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := store.Audit().Record(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("action", action).
			Str("resource", resource).
			Msg("audit: record failed")
	}
}

// publishChange tells realtime subscribers to re-fetch. events may be nil.
func publishChange(ctx context.Context, events Events, tenantID uuid.UUID, entity, action string, id uuid.UUID) {
	if events == nil {
		return
	}
	if err := events.PublishChange(ctx, tenantID, domain.NewChangeEvent(entity, action, id)); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("entity", entity).
			Str("entity_id", id.String()).
			Msg("realtime: publish change failed")
	}
}

// Page is embedded in list inputs that paginate.
type Page struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

// noStorage answers every file request with storage.ErrDisabled.
type noStorage struct{}

func (noStorage) PresignPut(context.Context, string, string) (*storage.PresignedURL, error) {
	return nil, storage.ErrDisabled
}

func (noStorage) PresignGet(context.Context, string) (*storage.PresignedURL, error) {
	return nil, storage.ErrDisabled
}

func (noStorage) Delete(context.Context, string) error { return storage.ErrDisabled }

func storageOrDisabled(files ObjectStorage) ObjectStorage {
	if files == nil {
		return noStorage{}
	}
	return files
}
