package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// Default request locations for credentials.
const (
	DefaultAPITokenHeader    = "access_token"
	DefaultSessionCookieName = "session_token"
)

// AuthService resolves the user behind a request.
type AuthService interface {
	// Authenticate checks, in order:
	//   1. the API token header (CLI and upload clients)
	//   2. the session cookie (browser clients)
	//   3. an Authorization: Bearer session token
	// It returns apperrors.ErrInactiveUser for disabled accounts.
	Authenticate(r *http.Request) (*models.User, *Claims, error)
}

// ServiceOptions configures where credentials are read from.
type ServiceOptions struct {
	APITokenHeader    string
	SessionCookieName string
}

type authService struct {
	tokens   TokenValidator
	userRepo repositories.UserRepository
	cache    *APITokenCache
	opts     ServiceOptions
	logger   *zap.Logger
}

// NewAuthService creates an AuthService. Lookups run against the database scope
// carried by the request context.
func NewAuthService(
	tokens TokenValidator,
	userRepo repositories.UserRepository,
	cache *APITokenCache,
	opts ServiceOptions,
	logger *zap.Logger,
) AuthService {
	if opts.APITokenHeader == "" {
		opts.APITokenHeader = DefaultAPITokenHeader
	}
	if opts.SessionCookieName == "" {
		opts.SessionCookieName = DefaultSessionCookieName
	}
	if cache == nil {
		cache = NewAPITokenCache(DefaultAPITokenCacheTTL)
	}
	return &authService{
		tokens:   tokens,
		userRepo: userRepo,
		cache:    cache,
		opts:     opts,
		logger:   logger.Named("auth"),
	}
}

func (s *authService) Authenticate(r *http.Request) (*models.User, *Claims, error) {
	if token := r.Header.Get(s.opts.APITokenHeader); token != "" {
		user, err := s.userByAPIToken(r, token)
		if err != nil {
			return nil, nil, err
		}
		return user, nil, checkActive(user)
	}

	tokenString, source, err := s.sessionToken(r)
	if err != nil {
		s.logger.Debug("No credentials found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
		return nil, nil, err
	}

	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("Session token validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", source))
		return nil, nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, claims, checkActive(user)
}

func (s *authService) userByAPIToken(r *http.Request, token string) (*models.User, error) {
	if user, ok := s.cache.Get(token); ok {
		return user, nil
	}

	user, err := s.userRepo.GetByAPIToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Debug("Unknown API token", zap.String("path", r.URL.Path))
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to look up API token: %w", err)
	}

	if user.Active {
		s.cache.Set(token, user)
	}
	return user, nil
}

// sessionToken reads the session JWT from the cookie, then the Authorization header.
func (s *authService) sessionToken(r *http.Request) (token, source string, err error) {
	if cookie, err := r.Cookie(s.opts.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie", nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "", ErrMissingAuthorization
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "", ErrInvalidAuthFormat
	}
	return parts[1], "header", nil
}

func checkActive(user *models.User) error {
	if !user.Active {
		return apperrors.ErrInactiveUser
	}
	return nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
