package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess     = "access"
	tokenTypeRefresh    = "refresh"
	tokenTypeOAuthState = "oauth_state"

	issuer = "shopdesk"
)

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is the payload of every token shopdesk signs. The JSON names are
// shared with the request middleware.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  string `json:"tid"`
	UserID    string `json:"uid,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
}

// IsAccess reports whether the claims belong to an access token.
func (c *Claims) IsAccess() bool {
	return c.TokenType == tokenTypeAccess
}

// Tenant parses the shop the token was issued for.
func (c *Claims) Tenant() (uuid.UUID, error) {
	id, err := uuid.Parse(c.TenantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.Claims.Tenant: %w", ErrInvalidToken)
	}
	return id, nil
}

// User parses the subject user. OAuth state tokens carry none.
func (c *Claims) User() (uuid.UUID, error) {
	if c.UserID == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.Claims.User: %w", ErrInvalidToken)
	}
	return id, nil
}

// subject identifies who a token speaks for.
type subject struct {
	tenant uuid.UUID
	user   uuid.UUID
	role   string
}

func (s subject) sign(secret, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:  s.tenant.String(),
		Role:      s.role,
		TokenType: kind,
	}
	if s.user != uuid.Nil {
		c.UserID = s.user.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.sign %s: %w", kind, err)
	}
	return signed, nil
}

// IssueAccessToken signs a short-lived token for API calls.
func IssueAccessToken(secret string, tenantID, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	return subject{tenant: tenantID, user: userID, role: role}.sign(secret, tokenTypeAccess, ttl)
}

// IssueRefreshToken signs a token that can only be traded for a new access token.
func IssueRefreshToken(secret string, tenantID, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	return subject{tenant: tenantID, user: userID, role: role}.sign(secret, tokenTypeRefresh, ttl)
}

func issueOAuthState(secret string, tenantID uuid.UUID, ttl time.Duration) (string, error) {
	return subject{tenant: tenantID}.sign(secret, tokenTypeOAuthState, ttl)
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(issuer),
	jwt.WithIssuedAt(),
)

// ValidateToken checks signature, issuer and expiry, and returns the claims.
// Every failure collapses to ErrInvalidToken.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	var c Claims
	_, err := parser.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}
	return &c, nil
}
