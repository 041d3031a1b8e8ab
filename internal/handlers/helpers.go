package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/utils"
)

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error: message,
		Code:  code,
	}

	json.NewEncoder(w).Encode(errResp)
}

// getClientIP extracts the client IP address from the request. Handlers use
// it for log context only; the admission middleware resolves the enforcement
// identity with the configured trust settings.
func getClientIP(r *http.Request) string {
	return utils.GetClientIPWithTrust(r, "auto", "127.0.0.1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16")
}

// getUserAgent returns the request's User-Agent header, or "unknown" when
// the client did not send one.
func getUserAgent(r *http.Request) string {
	if ua := r.Header.Get("User-Agent"); ua != "" {
		return ua
	}
	return "unknown"
}
