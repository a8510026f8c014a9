// Package auth resolves the calling user of an HTTP request from an API token header
// or an HS256 session JWT, and rejects inactive accounts.
package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing session JWT claims.
	ClaimsKey contextKey = "claims"
	// UserKey is the context key for storing the authenticated user.
	UserKey contextKey = "user"
)

// Claims is the session token payload. Subject carries the numeric user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	if c == nil || c.Subject == "" {
		return 0, fmt.Errorf("missing subject in session token")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q in session token", c.Subject)
	}
	return id, nil
}

// GetClaims retrieves session claims from the request context.
// Returns nil and false for API-token requests, which carry no claims.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}
