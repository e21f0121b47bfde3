package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/domain"
)

type SignupInput struct {
	Body struct {
		TenantName string `json:"tenant_name" minLength:"1" maxLength:"255" doc:"Shop name"`
		TenantSlug string `json:"tenant_slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug"`
		Email      string `json:"email" minLength:"3" maxLength:"255" doc:"Owner email"`
		Password   string `json:"password" minLength:"8" maxLength:"128" doc:"Password"` //nolint:gosec // G117: signup credential DTO
		Name       string `json:"name" minLength:"1" maxLength:"255" doc:"Owner display name"`
	}
}

type SessionOutput struct {
	Body struct {
		Tenant       *domain.Tenant `json:"tenant,omitempty"`
		User         *domain.User   `json:"user,omitempty"`
		AccessToken  string         `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string         `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type LoginInput struct {
	Body struct {
		TenantSlug string `json:"tenant_slug" minLength:"1" maxLength:"63" doc:"Tenant slug"`
		Email      string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password   string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
	}
}

type OAuthStartInput struct {
	Provider   string `path:"provider" enum:"google,github" doc:"OAuth provider"`
	TenantSlug string `query:"tenant_slug" required:"true" doc:"Tenant slug"`
}

type OAuthStartOutput struct {
	Body struct {
		URL string `json:"url" doc:"Provider authorization URL"`
	}
}

type OAuthCallbackInput struct {
	Provider string `path:"provider" enum:"google,github" doc:"OAuth provider"`
	State    string `query:"state" required:"true"`
	Code     string `query:"code" required:"true"`
}

// RegisterAuthRoutes wires the unauthenticated sign-in endpoints. providers
// maps a provider name to its OAuth client; missing entries answer 404.
func RegisterAuthRoutes(api huma.API, store DataStore, authSvc AuthService, providers map[string]auth.OAuthExchanger, defaultPlan string) {
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Create a shop and its owner account",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SignupInput) (*SessionOutput, error) {
		now := time.Now()
		tenant := &domain.Tenant{
			ID:        uuid.New(),
			Name:      input.Body.TenantName,
			Slug:      input.Body.TenantSlug,
			PlanCode:  defaultPlan,
			Status:    domain.TenantStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Tenants().Create(ctx, tenant); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("shop address is already taken")
			}
			return nil, apiError(ctx, err, "tenant")
		}

		// First user of a tenant becomes its admin.
		user, err := authSvc.Register(ctx, tenant.ID, input.Body.Email, input.Body.Password, input.Body.Name)
		if err != nil {
			return nil, registerError(ctx, err)
		}
		recordAudit(ctx, store, tenant.ID, "tenant.signup", "tenant", tenant.ID, map[string]any{"owner": user.ID.String()})

		return session(ctx, authSvc, tenant, user, input.Body.Password)
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
		tenant, err := activeTenant(ctx, store, input.Body.TenantSlug)
		if err != nil {
			return nil, err
		}

		tokens, err := authSvc.Login(ctx, tenant.ID, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, apiError(ctx, err, "login")
		}

		out := &SessionOutput{}
		out.Body.AccessToken = tokens.AccessToken
		out.Body.RefreshToken = tokens.RefreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if errors.Is(err, auth.ErrTenantSuspended) {
			return nil, huma.Error403Forbidden("this shop is suspended")
		}
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = accessToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-start",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/{provider}",
		Summary:     "Get the provider sign-in URL",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthStartInput) (*OAuthStartOutput, error) {
		p, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound(input.Provider + " sign-in is not enabled")
		}
		tenant, err := activeTenant(ctx, store, input.TenantSlug)
		if err != nil {
			return nil, err
		}

		url, err := authSvc.OAuthStart(p, tenant.ID)
		if err != nil {
			return nil, apiError(ctx, err, "sign-in")
		}

		out := &OAuthStartOutput{}
		out.Body.URL = url
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/{provider}/callback",
		Summary:     "Complete provider sign-in",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthCallbackInput) (*SessionOutput, error) {
		p, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound(input.Provider + " sign-in is not enabled")
		}

		tokens, user, err := authSvc.OAuthCallback(ctx, p, input.State, input.Code)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				return nil, huma.Error401Unauthorized("sign-in link expired, start again")
			case errors.Is(err, auth.ErrUserNotFound):
				return nil, huma.Error403Forbidden("no staff account matches this " + input.Provider + " email")
			case errors.Is(err, auth.ErrTenantSuspended):
				return nil, huma.Error403Forbidden("this shop is suspended")
			case errors.Is(err, auth.ErrOAuthNoEmail):
				return nil, huma.Error403Forbidden(input.Provider + " did not share an email address")
			}
			log.Warn().Err(err).Str("provider", input.Provider).Msg("oauth callback failed")
			return nil, huma.Error502BadGateway("could not complete " + input.Provider + " sign-in")
		}

		out := &SessionOutput{}
		out.Body.User = user
		out.Body.AccessToken = tokens.AccessToken
		out.Body.RefreshToken = tokens.RefreshToken
		return out, nil
	})
}

func activeTenant(ctx context.Context, store DataStore, slug string) (*domain.Tenant, error) {
	tenant, err := store.Tenants().GetBySlug(ctx, slug)
	if err != nil {
		return nil, apiError(ctx, err, "tenant")
	}
	if tenant.Status != domain.TenantStatusActive {
		return nil, huma.Error403Forbidden("this shop is suspended")
	}
	return tenant, nil
}

func registerError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return huma.Error409Conflict("user already exists")
	case errors.Is(err, auth.ErrWeakPassword):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return apiError(ctx, err, "user")
}

func session(ctx context.Context, authSvc AuthService, tenant *domain.Tenant, user *domain.User, password string) (*SessionOutput, error) {
	tokens, err := authSvc.Login(ctx, user.TenantID, user.Email, password)
	if err != nil {
		return nil, huma.Error500InternalServerError("registered but failed to issue tokens", err)
	}

	user.PasswordHash = ""
	out := &SessionOutput{}
	out.Body.Tenant = tenant
	out.Body.User = user
	out.Body.AccessToken = tokens.AccessToken
	out.Body.RefreshToken = tokens.RefreshToken
	return out, nil
}
