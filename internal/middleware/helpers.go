package middleware

import (
	"net/http"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/utils"
)

// getClientIP returns the client IP address with default trusted proxy
// settings. Used by middleware that has no access to config; the admission
// middleware resolves with the configured trust settings instead.
func getClientIP(r *http.Request) string {
	return utils.GetClientIPWithTrust(r, "auto", "127.0.0.1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16")
}
