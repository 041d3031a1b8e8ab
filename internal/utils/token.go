package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSessionToken generates a cryptographically secure session token
func GenerateSessionToken() (string, error) {
	// Generate 32 random bytes
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64 URL-safe string
	return base64.URLEncoding.EncodeToString(b), nil
}

// MaskToken masks a token for safe logging/display
// Shows first 3 and last 3 characters, masks the middle
// Example: "abc123xyz789" -> "abc***789"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	// For very short tokens (6 chars or less), mask completely
	if len(token) <= 6 {
		return "***"
	}

	// Show first 3 and last 3 characters
	return token[:3] + "***" + token[len(token)-3:]
}
