package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/auth"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
)

// LoginHandler handles account login
func LoginHandler(creds *auth.CredentialStore, sessions *auth.SessionStore, secureCookies bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Parse JSON request
		var req models.LoginRequest
		// Limit JSON request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // 1MB limit

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Error("failed to parse login request", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Invalid request format",
			})
			return
		}

		clientIP := getClientIP(r)
		userAgent := getUserAgent(r)

		// Validate input
		if req.Username == "" || req.Password == "" {
			slog.Warn("account login failed - empty username or password",
				"username", req.Username,
				"ip", clientIP,
			)
			time.Sleep(500 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Invalid username or password",
			})
			return
		}

		// Verify credentials
		role, ok := creds.Verify(req.Username, req.Password)
		if !ok {
			slog.Warn("account login failed - invalid credentials",
				"username", req.Username,
				"ip", clientIP,
			)
			time.Sleep(500 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Invalid username or password",
			})
			return
		}

		// Create session
		session, err := sessions.Create(req.Username, role, clientIP, userAgent)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Set session cookie
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    session.Token,
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookies,
			SameSite: http.SameSiteStrictMode,
			Expires:  session.ExpiresAt,
		})

		slog.Info("account login successful",
			"username", req.Username,
			"role", role,
			"ip", clientIP,
		)

		response := models.LoginResponse{
			Username: req.Username,
			Role:     role,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// LogoutHandler handles account logout
func LogoutHandler(sessions *auth.SessionStore, secureCookies bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Get session token from cookie
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil {
			// No session cookie, already logged out
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"message": "Logged out successfully",
			})
			return
		}

		sessions.Delete(cookie.Value)

		// Clear session cookie
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookies,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})

		slog.Info("account logout successful",
			"ip", getClientIP(r),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Logged out successfully",
		})
	}
}
