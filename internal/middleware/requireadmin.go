package middleware

import (
	"log/slog"
	"net/http"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/auth"
)

// RequireAdmin gates a handler behind a valid admin session. Requests
// without a session get 401; authenticated sessions without the admin role
// get 403.
func RequireAdmin(sessions *auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				slog.Warn("admin authentication failed - no session cookie",
					"path", r.URL.Path,
					"ip", getClientIP(r),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			session, ok := sessions.Get(cookie.Value)
			if !ok {
				slog.Warn("admin authentication failed - invalid session token",
					"path", r.URL.Path,
					"ip", getClientIP(r),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if session.Role != auth.RoleAdmin {
				slog.Warn("admin authentication failed - insufficient permissions",
					"path", r.URL.Path,
					"principal", session.Principal,
					"role", session.Role,
				)
				http.Error(w, "Forbidden - Admin access required", http.StatusForbidden)
				return
			}

			sessions.Touch(cookie.Value)
			next.ServeHTTP(w, r)
		})
	}
}
