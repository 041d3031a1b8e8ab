package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/utils"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "storefront_session"

// DefaultSessionTTL applies when no explicit session lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

// Session is one live login.
type Session struct {
	Token        string
	Principal    string
	Role         string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	IPAddress    string
	UserAgent    string
}

// Expired reports whether the session has lapsed at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStore holds live sessions in memory. Sessions do not survive a
// restart; after a cold start everyone simply logs in again, which matches
// the rest of the admission state starting empty.
type SessionStore struct {
	clock security.Clock
	ttl   time.Duration

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore creates an empty store. A non-positive ttl gets the
// default lifetime; clock may be nil for the system clock.
func NewSessionStore(ttl time.Duration, clock security.Clock) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = security.SystemClock{}
	}
	return &SessionStore{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

// Create issues a new session for principal and returns it.
func (s *SessionStore) Create(principal, role, ipAddress, userAgent string) (Session, error) {
	token, err := utils.GenerateSessionToken()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.clock.Now()
	session := Session{
		Token:        token,
		Principal:    principal,
		Role:         role,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
		LastActivity: now,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()
	return session, nil
}

// Get returns the active session for token. Unknown and expired tokens
// report false; expired entries are removed on the way out.
func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	if session.Expired(s.clock.Now()) {
		s.mu.Lock()
		// Re-check under the write lock; the token may have been re-issued.
		if current, ok := s.sessions[token]; ok && current.Expired(s.clock.Now()) {
			delete(s.sessions, token)
		}
		s.mu.Unlock()
		return Session{}, false
	}
	return session, true
}

// Touch updates the session's last activity timestamp. Unknown tokens are
// ignored.
func (s *SessionStore) Touch(token string) {
	s.mu.Lock()
	if session, ok := s.sessions[token]; ok {
		session.LastActivity = s.clock.Now()
		s.sessions[token] = session
	}
	s.mu.Unlock()
}

// Delete removes the session for token (logout).
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CleanupExpired removes lapsed sessions and reports how many were dropped.
func (s *SessionStore) CleanupExpired() (removed int) {
	now := s.clock.Now()
	s.mu.Lock()
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}
