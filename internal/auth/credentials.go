// Package auth is the storefront's boundary authentication: seeded demo
// accounts checked with bcrypt, in-memory sessions, and a cookie-based
// resolver that turns a request into the authenticated principal and roles
// the admission pipeline keys on. It never reaches into the admission
// decision itself.
package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Roles assigned to storefront accounts.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// dummyBcryptHash is a pre-generated valid bcrypt hash used for timing attack mitigation.
// This ensures constant-time behavior when checking credentials for non-existent users.
// Hash of "dummy-password-for-timing-attack-prevention" with cost 12.
const dummyBcryptHash = "$2a$12$LQv3c1yqBWVHxkd0LHAkCOYz6TtxMQJqhN8/X4UWYz/XLKF0S3dCy"

// bcryptCost is the work factor for account password hashes.
const bcryptCost = 12

type account struct {
	hash []byte
	role string
}

// CredentialStore holds the seeded accounts. Passwords are kept only as
// bcrypt hashes.
type CredentialStore struct {
	mu       sync.RWMutex
	accounts map[string]account
}

// NewCredentialStore creates an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{accounts: make(map[string]account)}
}

// Seed registers an account with the given role, replacing any existing
// entry for the username.
func (s *CredentialStore) Seed(username, password, role string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	// bcrypt silently truncates at 72 bytes - reject longer passwords
	if len(password) > 72 {
		return fmt.Errorf("password cannot exceed 72 characters (bcrypt limitation)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	s.accounts[username] = account{hash: hash, role: role}
	s.mu.Unlock()
	return nil
}

// Verify checks a username/password pair and returns the account's role.
//
// SECURITY: Uses bcrypt constant-time comparison. Does not differentiate
// between "user not found" and "wrong password" to prevent user enumeration.
func (s *CredentialStore) Verify(username, password string) (string, bool) {
	s.mu.RLock()
	acct, ok := s.accounts[username]
	s.mu.RUnlock()

	if !ok {
		// Unknown user - perform a dummy bcrypt comparison so the check costs
		// the same as a wrong password and usernames cannot be enumerated by
		// timing.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyBcryptHash), []byte(password)) //nolint:errcheck // Intentional: timing attack mitigation
		return "", false
	}

	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return "", false
	}
	return acct.role, true
}
