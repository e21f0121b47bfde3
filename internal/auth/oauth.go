package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/gosuda/shopdesk/internal/domain"
)

const oauthStateTTL = 10 * time.Minute

// OAuthIdentity is what a provider tells us about the person who signed in.
type OAuthIdentity struct {
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// OAuthExchanger turns an authorization code into a provider identity.
// *OAuthProvider satisfies this interface.
type OAuthExchanger interface {
	ProviderName() string
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthIdentity, error)
}

// OAuthProvider is an OAuth2 identity provider staff can sign in with.
type OAuthProvider struct {
	Name        string
	UserInfoURL string

	oauthConfig *oauth2.Config
	profile     func([]byte) (*OAuthIdentity, error)
}

// NewGoogleProvider configures Google sign-in.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		Name:        "google",
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
			RedirectURL:  redirectURL,
		},
		profile: googleProfile,
	}
}

// NewGitHubProvider configures GitHub sign-in.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		Name:        "github",
		UserInfoURL: "https://api.github.com/user",
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
			RedirectURL:  redirectURL,
		},
		profile: gitHubProfile,
	}
}

func (p *OAuthProvider) ProviderName() string { return p.Name }

func (p *OAuthProvider) AuthorizationURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and reads the profile with it. The HTTP
// client comes from ctx (oauth2.HTTPClient) when one is set there.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*OAuthIdentity, error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth.Exchange %s: token: %w", p.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("auth.Exchange %s: %w", p.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth.Exchange %s: profile: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth.Exchange %s: profile status %d", p.Name, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth.Exchange %s: profile: %w", p.Name, err)
	}

	ident, err := p.profile(body)
	if err != nil {
		return nil, fmt.Errorf("auth.Exchange %s: %w", p.Name, err)
	}
	// Staff are linked by email, so an identity without one is useless.
	if ident.Email == "" {
		return nil, fmt.Errorf("auth.Exchange %s: %w", p.Name, ErrOAuthNoEmail)
	}
	return ident, nil
}

// ErrOAuthNoEmail means the provider profile had no usable email address.
var ErrOAuthNoEmail = errors.New("auth: provider returned no email")

func googleProfile(data []byte) (*OAuthIdentity, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("google profile: %w", err)
	}
	return &OAuthIdentity{ProviderID: info.ID, Email: info.Email, Name: info.Name, AvatarURL: info.Picture}, nil
}

func gitHubProfile(data []byte) (*OAuthIdentity, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("github profile: %w", err)
	}
	name := info.Name
	if name == "" {
		name = info.Login
	}
	return &OAuthIdentity{
		ProviderID: strconv.FormatInt(info.ID, 10),
		Email:      info.Email,
		Name:       name,
		AvatarURL:  info.AvatarURL,
	}, nil
}

// OAuthStart returns the provider URL a staff member is redirected to. The
// state parameter is a short-lived signed token naming the tenant.
func (s *Service) OAuthStart(p OAuthExchanger, tenantID uuid.UUID) (string, error) {
	state, err := issueOAuthState(s.jwtSecret, tenantID, oauthStateTTL)
	if err != nil {
		return "", fmt.Errorf("auth.OAuthStart: %w", err)
	}
	return p.AuthorizationURL(state), nil
}

// OAuthCallback verifies state, exchanges code and signs in the matching staff
// user. A first sign-in links the provider identity to the user with the same
// email in the tenant; there is no self-signup through OAuth.
func (s *Service) OAuthCallback(ctx context.Context, p OAuthExchanger, state, code string) (*Tokens, *domain.User, error) {
	claims, err := ValidateToken(s.jwtSecret, state)
	if err != nil || claims.TokenType != tokenTypeOAuthState {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: state: %w", ErrInvalidToken)
	}
	tenantID, err := claims.Tenant()
	if err != nil {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: state: %w", err)
	}
	if err := s.ensureActive(ctx, tenantID); err != nil {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: %w", err)
	}

	ident, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: %w", err)
	}

	user, err := s.resolveOAuthUser(ctx, tenantID, p.ProviderName(), ident)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: %w", err)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.OAuthCallback: %w", err)
	}
	return tokens, user, nil
}

func (s *Service) resolveOAuthUser(ctx context.Context, tenantID uuid.UUID, provider string, ident *OAuthIdentity) (*domain.User, error) {
	link, err := s.userRepo.GetOAuthLink(ctx, provider, ident.ProviderID)
	if err == nil {
		user, err := s.userRepo.GetByID(ctx, tenantID, link.UserID)
		if err != nil {
			return nil, ErrUserNotFound
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if ident.Email == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByEmail(ctx, tenantID, normalizeEmail(ident.Email))
	if err != nil {
		return nil, ErrUserNotFound
	}

	if err := s.userRepo.CreateOAuthLink(ctx, &domain.UserOAuthLink{
		ID:         uuid.New(),
		UserID:     user.ID,
		Provider:   provider,
		ProviderID: ident.ProviderID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return nil, err
	}

	if user.AvatarURL == "" && ident.AvatarURL != "" {
		user.AvatarURL = ident.AvatarURL
		user.UpdatedAt = time.Now()
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}
