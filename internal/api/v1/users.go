package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/server/middleware"
)

type UserOutput struct {
	Body *domain.User
}

type ListUsersOutput struct {
	Body []*domain.User
}

type ChangeRoleInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		Role string `json:"role" enum:"superadmin,admin,member,viewer" doc:"New role"`
	}
}

type CreateUserInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"Staff email"`
		Password string `json:"password" minLength:"8" maxLength:"128" doc:"Initial password"` //nolint:gosec // G117: staff credential DTO
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Role     string `json:"role,omitempty" enum:"admin,member,viewer" doc:"Role; member when omitted"`
	}
}

type CreateAPIKeyInput struct {
	Body struct {
		Name      string     `json:"name" minLength:"1" maxLength:"100" doc:"Key label"`
		Role      string     `json:"role,omitempty" enum:"admin,member,viewer" doc:"Role the key acts with; defaults to the caller's role"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" doc:"Expiry; never when omitted"`
	}
}

type CreateAPIKeyOutput struct {
	Body struct {
		Key    string         `json:"key" doc:"Raw key, shown once"`
		APIKey *domain.APIKey `json:"api_key"`
	}
}

type ListAPIKeysOutput struct {
	Body []*domain.APIKey
}

type APIKeyIDInput struct {
	ID uuid.UUID `path:"id" doc:"API key ID"`
}

func RegisterUserRoutes(api huma.API, store DataStore, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the signed-in user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*UserOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}
		userID, _ := middleware.UserIDFromContext(ctx)

		user, err := authSvc.GetUser(ctx, tenantID, userID)
		if err != nil {
			return nil, apiError(ctx, err, "user")
		}
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List staff users",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		users, err := store.Users().List(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "users")
		}
		return &ListUsersOutput{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Add a staff user to the shop",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}

		user, err := authSvc.Register(ctx, tenantID, input.Body.Email, input.Body.Password, input.Body.Name)
		if err != nil {
			return nil, registerError(ctx, err)
		}
		if role := input.Body.Role; role != "" && role != user.Role {
			actorRole, _ := middleware.RoleFromContext(ctx)
			if user, err = authSvc.ChangeRole(ctx, tenantID, user.ID, role, actorRole); err != nil {
				return nil, apiError(ctx, err, "user")
			}
		}

		recordAudit(ctx, store, tenantID, "user.created", "user", user.ID, map[string]any{"role": user.Role})
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-user-role",
		Method:      http.MethodPut,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *ChangeRoleInput) (*UserOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}
		actorRole, _ := middleware.RoleFromContext(ctx)

		user, err := authSvc.ChangeRole(ctx, tenantID, input.ID, input.Body.Role, actorRole)
		if err != nil {
			return nil, apiError(ctx, err, "user")
		}
		recordAudit(ctx, store, tenantID, "user.role_changed", "user", user.ID, map[string]any{"role": user.Role})
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create an API key",
		Tags:          []string{"API keys"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}
		userID, _ := middleware.UserIDFromContext(ctx)
		callerRole, _ := middleware.RoleFromContext(ctx)

		role := input.Body.Role
		if role == "" {
			role = callerRole
			if role == middleware.RoleSuperAdmin {
				role = middleware.RoleAdmin
			}
		}
		if !domain.RoleCovers(callerRole, role) {
			return nil, huma.Error403Forbidden("a key cannot have more rights than its owner")
		}

		raw, key, err := authSvc.GenerateAPIKey(ctx, tenantID, userID, input.Body.Name, role, input.Body.ExpiresAt)
		if err != nil {
			return nil, apiError(ctx, err, "API key")
		}
		recordAudit(ctx, store, tenantID, "api_key.created", "api_key", key.ID, map[string]any{"role": key.Role})

		out := &CreateAPIKeyOutput{}
		out.Body.Key = raw
		out.Body.APIKey = key
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List the caller's API keys",
		Tags:        []string{"API keys"},
	}, func(ctx context.Context, _ *struct{}) (*ListAPIKeysOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}
		userID, _ := middleware.UserIDFromContext(ctx)

		keys, err := authSvc.ListAPIKeys(ctx, tenantID, userID)
		if err != nil {
			return nil, apiError(ctx, err, "API keys")
		}
		return &ListAPIKeysOutput{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/api-keys/{id}",
		Summary:     "Revoke an API key",
		Tags:        []string{"API keys"},
	}, func(ctx context.Context, input *APIKeyIDInput) (*struct{}, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return nil, err
		}

		if err := authSvc.RevokeAPIKey(ctx, tenantID, input.ID); err != nil {
			return nil, apiError(ctx, err, "API key")
		}
		recordAudit(ctx, store, tenantID, "api_key.revoked", "api_key", input.ID, nil)
		return nil, nil
	})
}
