package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// DefaultSessionTTL is the lifetime of issued session tokens.
const DefaultSessionTTL = 24 * time.Hour

// TokenIssuer is the issuer claim of session tokens.
const TokenIssuer = "ultraqc"

// ErrInvalidToken is returned for session tokens that fail signature or claim validation.
var ErrInvalidToken = errors.New("invalid session token")

// TokenValidator validates session tokens. Implemented by *SessionTokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionTokens issues and validates HS256 session JWTs signed with the server secret.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokens creates a session token manager. ttl <= 0 uses DefaultSessionTTL.
func NewSessionTokens(secret string, ttl time.Duration) (*SessionTokens, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a session token for user.
func (s *SessionTokens) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: user.Username,
		Admin:    user.IsAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm, issuer and expiry.
func (s *SessionTokens) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

var _ TokenValidator = (*SessionTokens)(nil)
