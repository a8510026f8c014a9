package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireUser authenticates the request and requires an active account.
// Sets the user (and session claims, if any) in context for downstream handlers.
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := m.authService.Authenticate(r)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInactiveUser):
			m.logger.Info("Inactive user rejected", zap.String("path", r.URL.Path))
			m.forbidden(w, "User account is inactive")
			return
		case errors.Is(err, apperrors.ErrUnauthenticated),
			errors.Is(err, ErrMissingAuthorization),
			errors.Is(err, ErrInvalidAuthFormat),
			errors.Is(err, ErrInvalidToken):
			m.unauthorized(w, "Authentication required")
			return
		default:
			m.logger.Error("Authentication failed", zap.Error(err), zap.String("path", r.URL.Path))
			m.internalError(w)
			return
		}

		ctx := WithUser(r.Context(), user)
		if claims != nil {
			ctx = context.WithValue(ctx, ClaimsKey, claims)
		}
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin is RequireUser plus the admin flag.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		user, _ := GetUser(r.Context())
		if !user.IsAdmin {
			m.forbidden(w, "Administrator access required")
			return
		}
		next(w, r)
	})
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusForbidden, "forbidden", message)
}

func (m *Middleware) internalError(w http.ResponseWriter) {
	m.writeError(w, http.StatusInternalServerError, "internal_error", "Authentication could not be completed")
}
