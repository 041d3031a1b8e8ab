package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/auth"
)

func TestRequireAdmin_NoCookie(t *testing.T) {
	sessions := auth.NewSessionStore(time.Hour, nil)
	handler := RequireAdmin(sessions)(okHandler())

	rr := doRequest(handler, http.MethodGet, "/admin/api/security/blocks", "10.0.0.1:1234")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdmin_InvalidToken(t *testing.T) {
	sessions := auth.NewSessionStore(time.Hour, nil)
	handler := RequireAdmin(sessions)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin/api/security/blocks", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "not-a-real-token"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdmin_NonAdminRole(t *testing.T) {
	sessions := auth.NewSessionStore(time.Hour, nil)
	session, err := sessions.Create("shopper", auth.RoleCustomer, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	handler := RequireAdmin(sessions)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin/api/security/blocks", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session.Token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireAdmin_ValidAdminSession(t *testing.T) {
	clock := newFakeClock()
	sessions := auth.NewSessionStore(time.Hour, clock)
	session, err := sessions.Create("root", auth.RoleAdmin, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	handler := RequireAdmin(sessions)(okHandler())

	clock.Advance(10 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/security/blocks", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session.Token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); body != "OK" {
		t.Errorf("body = %q, want %q", body, "OK")
	}

	// Passing the gate refreshes the session's activity timestamp.
	refreshed, ok := sessions.Get(session.Token)
	if !ok {
		t.Fatal("session disappeared after successful request")
	}
	if !refreshed.LastActivity.Equal(clock.Now()) {
		t.Errorf("LastActivity = %v, want %v", refreshed.LastActivity, clock.Now())
	}
}

func TestRequireAdmin_ExpiredSession(t *testing.T) {
	clock := newFakeClock()
	sessions := auth.NewSessionStore(time.Hour, clock)
	session, err := sessions.Create("root", auth.RoleAdmin, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	handler := RequireAdmin(sessions)(okHandler())

	clock.Advance(2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/security/blocks", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session.Token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
