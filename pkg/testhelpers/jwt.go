// Package testhelpers provides utilities for testing UltraQC components.
package testhelpers

import (
	"testing"

	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// TestSecretKey signs session tokens in tests.
const TestSecretKey = "ultraqc-test-secret-key"

// SessionTokens returns a token manager signed with TestSecretKey.
func SessionTokens(t *testing.T) *auth.SessionTokens {
	t.Helper()
	tokens, err := auth.NewSessionTokens(TestSecretKey, 0)
	if err != nil {
		t.Fatalf("failed to create session tokens: %v", err)
	}
	return tokens
}

// BearerToken issues a session token for user and returns it with the "Bearer " prefix.
func BearerToken(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := SessionTokens(t).Issue(user)
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return "Bearer " + token
}
