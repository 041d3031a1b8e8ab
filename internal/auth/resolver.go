package auth

import "net/http"

// Resolver turns a request's session cookie into the authenticated
// principal and roles. Requests without a valid session resolve as
// anonymous; resolution never fails a request.
type Resolver struct {
	sessions *SessionStore
}

// NewResolver creates a resolver over the session store.
func NewResolver(sessions *SessionStore) *Resolver {
	return &Resolver{sessions: sessions}
}

// Identity returns the principal and roles for r. Anonymous requests get
// an empty principal and nil roles.
func (rv *Resolver) Identity(r *http.Request) (string, []string) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	session, ok := rv.sessions.Get(cookie.Value)
	if !ok {
		return "", nil
	}
	return session.Principal, []string{session.Role}
}
