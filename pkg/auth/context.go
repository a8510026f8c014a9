package auth

import (
	"context"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the authenticated user set by the middleware.
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

// RequireUser returns the authenticated user or apperrors.ErrUnauthenticated.
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUser(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	return user, nil
}
