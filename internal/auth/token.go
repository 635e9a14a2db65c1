package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashToken produces a bcrypt hash of an admin API token, suitable for
// VQ_ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", fmt.Errorf("token is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func VerifyToken(token, hash string) bool {
	trimmedToken := strings.TrimSpace(token)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedToken == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedToken)) == nil
}
