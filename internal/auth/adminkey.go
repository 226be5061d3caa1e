// Package auth guards the mutating dashboard routes with a shared admin key
// stored as a bcrypt hash.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinKeyLength      = 16

	HeaderAdminKey = "X-Admin-Key"
)

func HashKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if len(trimmed) < MinKeyLength {
		return "", fmt.Errorf("admin key must be at least %d characters", MinKeyLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash admin key: %w", err)
	}
	return string(hash), nil
}

func VerifyKey(key, hash string) bool {
	trimmedKey := strings.TrimSpace(key)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedKey == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedKey)) == nil
}

// CheckHash reports whether hash is a bcrypt hash this package can verify against.
func CheckHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(strings.TrimSpace(hash))); err != nil {
		return fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return nil
}

// KeyFromHeader reads X-Admin-Key, falling back to an Authorization bearer token.
func KeyFromHeader(h http.Header) string {
	if key := strings.TrimSpace(h.Get(HeaderAdminKey)); key != "" {
		return key
	}
	authz := strings.TrimSpace(h.Get("Authorization"))
	if len(authz) > len("Bearer ") && strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return ""
}
