package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/domain"
)

func TestGetMe(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	authSvc := &mockAuthService{
		getUserFunc: func(_ context.Context, tenantID, userID uuid.UUID) (*domain.User, error) {
			assert.Equal(t, fixedTenantID(), tenantID)
			assert.Equal(t, fixedUserID(), userID)
			return &domain.User{ID: userID, TenantID: tenantID, Email: "me@acme.io", PasswordHash: "hash"}, nil
		},
	}
	v1.RegisterUserRoutes(api, &mockDataStore{}, authSvc)

	resp := api.GetCtx(viewerCtx(fixedTenantID()), "/me")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "hash")
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	t.Run("admin", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				listFunc: func(_ context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
					return []*domain.User{{ID: uuid.New(), TenantID: tenantID}}, nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store, &mockAuthService{})

		resp := api.GetCtx(adminCtx(fixedTenantID()), "/users")
		require.Equal(t, http.StatusOK, resp.Code)

		var body []domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body, 1)
	})

	t.Run("member_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{}, &mockAuthService{})

		resp := api.GetCtx(memberCtx(fixedTenantID()), "/users")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestChangeRole(t *testing.T) {
	t.Parallel()

	t.Run("admin_demotes_member", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{}
		target := uuid.New()
		authSvc := &mockAuthService{
			changeRoleFunc: func(_ context.Context, _, userID uuid.UUID, role, actorRole string) (*domain.User, error) {
				assert.Equal(t, target, userID)
				assert.Equal(t, domain.RoleAdmin, actorRole)
				return &domain.User{ID: userID, Role: role}, nil
			},
		}
		v1.RegisterUserRoutes(api, store, authSvc)

		resp := api.PutCtx(adminCtx(fixedTenantID()), "/users/"+target.String()+"/role", map[string]any{"role": "viewer"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"user.role_changed"}, store.auditActions())
	})

	t.Run("service_rejects_escalation", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			changeRoleFunc: func(context.Context, uuid.UUID, uuid.UUID, string, string) (*domain.User, error) {
				return nil, domain.ErrForbidden
			},
		}
		v1.RegisterUserRoutes(api, &mockDataStore{}, authSvc)

		resp := api.PutCtx(adminCtx(fixedTenantID()), "/users/"+uuid.New().String()+"/role", map[string]any{"role": "superadmin"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("unknown_role", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{}, &mockAuthService{})

		resp := api.PutCtx(adminCtx(fixedTenantID()), "/users/"+uuid.New().String()+"/role", map[string]any{"role": "owner"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestCreateAPIKey(t *testing.T) {
	t.Parallel()

	t.Run("defaults_to_caller_role", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{}
		authSvc := &mockAuthService{
			generateAPIKeyFunc: func(_ context.Context, tenantID, userID uuid.UUID, name, role string, _ *time.Time) (string, *domain.APIKey, error) {
				assert.Equal(t, domain.RoleMember, role)
				return "sd_raw", &domain.APIKey{ID: uuid.New(), TenantID: tenantID, UserID: userID, Name: name, Role: role}, nil
			},
		}
		v1.RegisterUserRoutes(api, store, authSvc)

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/api-keys", map[string]any{"name": "pos terminal"})
		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Contains(t, resp.Body.String(), "sd_raw")
		assert.Equal(t, []string{"api_key.created"}, store.auditActions())
	})

	t.Run("cannot_exceed_owner", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{}, &mockAuthService{})

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/api-keys", map[string]any{"name": "x", "role": "admin"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("viewer_cannot_create", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{}, &mockAuthService{})

		resp := api.PostCtx(viewerCtx(fixedTenantID()), "/api-keys", map[string]any{"name": "x"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("invalid_role_from_service", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			generateAPIKeyFunc: func(context.Context, uuid.UUID, uuid.UUID, string, string, *time.Time) (string, *domain.APIKey, error) {
				return "", nil, auth.ErrInvalidRole
			},
		}
		v1.RegisterUserRoutes(api, &mockDataStore{}, authSvc)

		resp := api.PostCtx(adminCtx(fixedTenantID()), "/api-keys", map[string]any{"name": "x", "role": "viewer"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestRevokeAPIKey(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	store := &mockDataStore{}
	v1.RegisterUserRoutes(api, store, &mockAuthService{})

	resp := api.DeleteCtx(memberCtx(fixedTenantID()), "/api-keys/"+uuid.New().String())
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, []string{"api_key.revoked"}, store.auditActions())
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	newStaff := map[string]any{
		"email":    "barista@acme.io",
		"password": "steamed-milk-9",
		"name":     "Barista",
	}
	registered := func(_ context.Context, tenantID uuid.UUID, email, _, name string) (*domain.User, error) {
		return &domain.User{ID: uuid.New(), TenantID: tenantID, Email: email, Name: name, Role: domain.RoleMember}, nil
	}

	t.Run("admin_adds_member", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{}
		v1.RegisterUserRoutes(api, store, &mockAuthService{registerFunc: registered})

		resp := api.PostCtx(adminCtx(fixedTenantID()), "/users", newStaff)
		require.Equal(t, http.StatusCreated, resp.Code)

		var u domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&u))
		assert.Equal(t, domain.RoleMember, u.Role)
		assert.Equal(t, fixedTenantID(), u.TenantID)
		assert.Equal(t, []string{"user.created"}, store.auditActions())
	})

	t.Run("admin_adds_viewer", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: registered,
			changeRoleFunc: func(_ context.Context, _, userID uuid.UUID, role, actorRole string) (*domain.User, error) {
				assert.Equal(t, domain.RoleAdmin, actorRole)
				return &domain.User{ID: userID, Role: role}, nil
			},
		}
		v1.RegisterUserRoutes(api, &mockDataStore{}, authSvc)

		body := map[string]any{"role": "viewer"}
		for k, v := range newStaff {
			body[k] = v
		}
		resp := api.PostCtx(adminCtx(fixedTenantID()), "/users", body)
		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Contains(t, resp.Body.String(), `"role":"viewer"`)
	})

	t.Run("member_cannot_add_staff", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{}, &mockAuthService{})

		resp := api.PostCtx(memberCtx(fixedTenantID()), "/users", newStaff)
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: func(context.Context, uuid.UUID, string, string, string) (*domain.User, error) {
				return nil, auth.ErrUserAlreadyExists
			},
		}
		v1.RegisterUserRoutes(api, &mockDataStore{}, authSvc)

		resp := api.PostCtx(adminCtx(fixedTenantID()), "/users", newStaff)
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestAuthRoutes_NoPublicRegistration(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterAuthRoutes(api, &mockDataStore{tenants: acmeTenants(domain.TenantStatusActive)}, &mockAuthService{}, nil, "starter")

	resp := api.Post("/auth/register", newStaffBody())
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func newStaffBody() map[string]any {
	return map[string]any{"tenant_slug": "acme", "email": "walkin@acme.io", "password": "s3cretpass", "name": "Walk In"}
}
