// Package auth provides JWT-based authentication and role capability checks
// for kawsay-engine. Tokens are issued by the platform's identity service and
// validated against its JWKS endpoints.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/digikawsay/kawsay-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure from the identity service.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds custom claims for tenant context and RBAC.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid,omitempty"`   // Tenant identifier
	Role     string `json:"role,omitempty"`  // User role within the tenant
	Email    string `json:"email,omitempty"` // User email address
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// ActorFromContext builds the acting user's identity from JWT claims in
// context. Returns a zero Actor and false if not authenticated.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return models.Actor{}, false
	}
	return models.Actor{
		ID:       claims.Subject,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, true
}
