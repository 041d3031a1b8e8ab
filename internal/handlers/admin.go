package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/audit"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/metrics"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/utils"
)

// SettingsBlacklistReason marks permanent blocks that exist because the IP
// is listed in the security settings blacklist. The settings handler uses it
// to withdraw entries removed from the list without touching blocks created
// by the block endpoint or by escalation.
const SettingsBlacklistReason = "Blacklisted via security settings"

// maxSecurityEventsLimit caps the admin event listing page size.
const maxSecurityEventsLimit = 500

// ApplySecurityLists applies the whitelist and blacklist columns of the
// settings row to the runtime reputation store. The whitelist is replaced
// wholesale. Blacklisted IPs gain a permanent block unless one already
// exists; settings-sourced permanent blocks for IPs no longer listed are
// withdrawn. Returns how many blocks were added and removed.
func ApplySecurityLists(ctx context.Context, store *security.ReputationStore, whitelisted, blacklisted []string, now time.Time) (added, removed int) {
	store.SetWhitelist(whitelisted)

	want := make(map[string]struct{}, len(blacklisted))
	for _, ip := range blacklisted {
		want[ip] = struct{}{}
	}
	for _, b := range store.ActiveBlocks(now) {
		if !b.Permanent() || b.Reason != SettingsBlacklistReason {
			continue
		}
		if _, keep := want[b.IP]; !keep {
			if store.Unblock(ctx, b.IP) {
				removed++
			}
		}
	}
	for _, ip := range blacklisted {
		if existing, ok := store.Lookup(ip, now); ok && existing.Permanent() {
			continue
		}
		store.Block(ctx, ip, SettingsBlacklistReason, security.BlockSourceAdmin, 0, true)
		added++
	}
	return added, removed
}

// AdminSecuritySettingsHandler serves and replaces the security settings row.
// GET returns the stored settings, or the environment-derived fallback when
// nothing was ever saved. PUT replaces the whole row, invalidates the policy
// cache, and applies the IP lists to the reputation store immediately.
func AdminSecuritySettingsHandler(settings repository.SettingsRepository, policies *policy.Cached, store *security.ReputationStore, fallback policy.Policy, events audit.Sink, clock security.Clock) http.HandlerFunc {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			current, err := settings.Get(r.Context())
			if err != nil {
				slog.Error("failed to load security settings", "error", err)
				http.Error(w, "Failed to load security settings", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(settingsResponse(current, fallback))

		case http.MethodPut:
			var req models.UpdateSecuritySettingsRequest
			// Limit JSON request body size to prevent memory exhaustion
			r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // 1MB limit
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Bad request", http.StatusBadRequest)
				return
			}

			whitelist, bad := canonicalIPList(req.WhitelistedIPs)
			if bad != "" {
				http.Error(w, "Invalid IP address in whitelist: "+bad, http.StatusBadRequest)
				return
			}
			blacklist, bad := canonicalIPList(req.BlacklistedIPs)
			if bad != "" {
				http.Error(w, "Invalid IP address in blacklist: "+bad, http.StatusBadRequest)
				return
			}

			row := &repository.SecuritySettings{
				RateLimitingEnabled:           req.RateLimitingEnabled,
				IPBlockingEnabled:             req.IPBlockingEnabled,
				MaxRequestsPerMinute:          req.MaxRequestsPerMinute,
				MaxRequestsPerSecond:          req.MaxRequestsPerSecond,
				MaxRequestsPerMinuteAuth:      req.MaxRequestsPerMinuteAuth,
				MaxRequestsPerSecondAuth:      req.MaxRequestsPerSecondAuth,
				ExemptAdminsFromRateLimiting:  req.ExemptAdminsFromRateLimiting,
				ErrorSpikeThresholdPerMinute:  req.ErrorSpikeThresholdPerMinute,
				ErrorSpikeConsecutiveMinutes:  req.ErrorSpikeConsecutiveMinutes,
				AutoPermanentBlacklistEnabled: req.AutoPermanentBlacklistEnabled,
				IPBlockDurationMinutes:        req.IPBlockDurationMinutes,
				WhitelistedIPs:                whitelist,
				BlacklistedIPs:                blacklist,
			}
			if err := settings.Save(r.Context(), row); err != nil {
				slog.Error("failed to save security settings", "error", err)
				http.Error(w, "Failed to save security settings", http.StatusInternalServerError)
				return
			}

			// Admin changes take effect on the next request, not the next
			// cache refresh.
			policies.Invalidate()
			added, _ := ApplySecurityLists(r.Context(), store, whitelist, blacklist, clock.Now())
			if added > 0 {
				metrics.IPBlocksTotal.WithLabelValues(security.BlockSourceAdmin).Add(float64(added))
			}

			events.Record(r.Context(), audit.Event{
				Type:      audit.EventWhitelistUpdated,
				Severity:  audit.SeverityMedium,
				IPAddress: getClientIP(r),
				Endpoint:  r.URL.Path,
				UserAgent: getUserAgent(r),
				Details:   fmt.Sprintf("security settings replaced: %d whitelisted, %d blacklisted", len(whitelist), len(blacklist)),
			})

			slog.Info("admin updated security settings",
				"rate_limiting_enabled", req.RateLimitingEnabled,
				"ip_blocking_enabled", req.IPBlockingEnabled,
				"whitelisted", len(whitelist),
				"blacklisted", len(blacklist),
				"admin_ip", getClientIP(r),
			)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"message": "Security settings updated successfully",
			})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// AdminBlockIPHandler blocks an IP address
func AdminBlockIPHandler(store *security.ReputationStore, policies *policy.Cached, events audit.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req models.BlockIPRequest
		// Limit JSON request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // 1MB limit
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if req.IPAddress == "" {
			http.Error(w, "Missing ip_address parameter", http.StatusBadRequest)
			return
		}
		ip := utils.CanonicalIP(req.IPAddress)
		if ip == "" {
			http.Error(w, "Invalid ip_address parameter", http.StatusBadRequest)
			return
		}

		reason := req.Reason
		if reason == "" {
			reason = "Blocked by admin"
		}

		minutes := req.DurationMinutes
		if minutes <= 0 {
			pol, err := policies.Current(r.Context())
			if err != nil {
				pol = policy.Default()
			}
			minutes = pol.Normalized().IPBlockDurationMinutes
		}

		store.Block(r.Context(), ip, reason, security.BlockSourceAdmin, time.Duration(minutes)*time.Minute, req.Permanent)
		metrics.IPBlocksTotal.WithLabelValues(security.BlockSourceAdmin).Inc()

		events.Record(r.Context(), audit.Event{
			Type:      audit.EventIPManuallyBlocked,
			Severity:  audit.SeverityHigh,
			IPAddress: ip,
			Endpoint:  r.URL.Path,
			UserAgent: getUserAgent(r),
			Details:   reason,
			IsBlocked: true,
		})

		slog.Info("admin blocked IP",
			"blocked_ip", ip,
			"reason", reason,
			"permanent", req.Permanent,
			"admin_ip", getClientIP(r),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "IP blocked successfully",
		})
	}
}

// AdminUnblockIPHandler unblocks an IP address
func AdminUnblockIPHandler(store *security.ReputationStore, events audit.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ipAddress := r.URL.Query().Get("ip_address")
		if ipAddress == "" {
			var req models.UnblockIPRequest
			r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				ipAddress = req.IPAddress
			}
		}

		if ipAddress == "" {
			http.Error(w, "Missing ip_address parameter", http.StatusBadRequest)
			return
		}
		ip := utils.CanonicalIP(ipAddress)
		if ip == "" {
			http.Error(w, "Invalid ip_address parameter", http.StatusBadRequest)
			return
		}

		if !store.Unblock(r.Context(), ip) {
			http.Error(w, "IP address is not blocked", http.StatusNotFound)
			return
		}

		events.Record(r.Context(), audit.Event{
			Type:      audit.EventIPUnblocked,
			Severity:  audit.SeverityMedium,
			IPAddress: ip,
			Endpoint:  r.URL.Path,
			UserAgent: getUserAgent(r),
			Details:   "block removed by admin",
		})

		slog.Info("admin unblocked IP",
			"unblocked_ip", ip,
			"admin_ip", getClientIP(r),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "IP unblocked successfully",
		})
	}
}

// AdminWhitelistHandler adds (POST) or removes (DELETE) a whitelist entry.
// The change is persisted to the settings row and applied to the reputation
// store in the same request.
func AdminWhitelistHandler(settings repository.SettingsRepository, store *security.ReputationStore, events audit.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ipAddress := r.URL.Query().Get("ip_address")
		if ipAddress == "" {
			var req models.WhitelistRequest
			r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				ipAddress = req.IPAddress
			}
		}

		if ipAddress == "" {
			http.Error(w, "Missing ip_address parameter", http.StatusBadRequest)
			return
		}
		ip := utils.CanonicalIP(ipAddress)
		if ip == "" {
			http.Error(w, "Invalid ip_address parameter", http.StatusBadRequest)
			return
		}

		current, err := settings.Get(r.Context())
		if err != nil {
			slog.Error("failed to load security settings", "error", err)
			http.Error(w, "Failed to update whitelist", http.StatusInternalServerError)
			return
		}
		var whitelist, blacklist []string
		if current != nil {
			whitelist = current.WhitelistedIPs
			blacklist = current.BlacklistedIPs
		}

		var action, message string
		switch r.Method {
		case http.MethodPost:
			action = "added"
			message = "IP whitelisted successfully"
			exists := false
			for _, entry := range whitelist {
				if entry == ip {
					exists = true
					break
				}
			}
			if !exists {
				whitelist = append(whitelist, ip)
			}
		case http.MethodDelete:
			action = "removed"
			message = "IP removed from whitelist successfully"
			kept := make([]string, 0, len(whitelist))
			for _, entry := range whitelist {
				if entry != ip {
					kept = append(kept, entry)
				}
			}
			if len(kept) == len(whitelist) {
				http.Error(w, "IP address is not whitelisted", http.StatusNotFound)
				return
			}
			whitelist = kept
		}

		if err := settings.UpdateLists(r.Context(), whitelist, blacklist); err != nil {
			slog.Error("failed to persist whitelist change", "error", err)
			http.Error(w, "Failed to update whitelist", http.StatusInternalServerError)
			return
		}

		switch r.Method {
		case http.MethodPost:
			store.Whitelist(ip)
		case http.MethodDelete:
			store.RemoveWhitelist(ip)
		}

		events.Record(r.Context(), audit.Event{
			Type:      audit.EventWhitelistUpdated,
			Severity:  audit.SeverityMedium,
			IPAddress: ip,
			Endpoint:  r.URL.Path,
			UserAgent: getUserAgent(r),
			Details:   fmt.Sprintf("ip %s whitelist", action),
		})

		slog.Info("admin updated whitelist",
			"ip_address", ip,
			"action", action,
			"admin_ip", getClientIP(r),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": message,
		})
	}
}

// AdminListBlocksHandler lists active blocks, newest first
func AdminListBlocksHandler(store *security.ReputationStore, clock security.Clock) http.HandlerFunc {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		blocks := store.ActiveBlocks(clock.Now())
		out := make([]models.BlockedIPResponse, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, models.BlockedIPResponse{
				IPAddress: b.IP,
				Reason:    b.Reason,
				Source:    b.Source,
				Permanent: b.Permanent(),
				BlockedAt: b.BlockedAt,
				ExpiresAt: b.ExpiresAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"blocks": out,
			"count":  len(out),
		})
	}
}

// AdminSecurityEventsHandler lists recent security events, newest first
func AdminSecurityEventsHandler(repo repository.SecurityEventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := repository.DefaultPagination().Limit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
				return
			}
			limit = n
		}
		if limit > maxSecurityEventsLimit {
			limit = maxSecurityEventsLimit
		}

		records, err := repo.ListRecent(r.Context(), limit)
		if err != nil {
			slog.Error("failed to list security events", "error", err)
			http.Error(w, "Failed to list security events", http.StatusInternalServerError)
			return
		}

		out := make([]models.SecurityEventResponse, 0, len(records))
		for _, e := range records {
			out = append(out, models.SecurityEventResponse{
				EventID:   e.EventID,
				EventType: e.EventType,
				Severity:  e.Severity,
				IPAddress: e.IPAddress,
				Endpoint:  e.Endpoint,
				UserAgent: e.UserAgent,
				Details:   e.Details,
				IsBlocked: e.IsBlocked,
				CreatedAt: e.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": out,
			"count":  len(out),
		})
	}
}

// AdminSecurityStatsHandler summarizes current protection state
func AdminSecurityStatsHandler(store *security.ReputationStore, clock security.Clock) http.HandlerFunc {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		stats := store.Stats(clock.Now())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.SecurityStatsResponse{
			WhitelistedIPs:  stats.Whitelisted,
			TemporaryBlocks: stats.TemporaryBlocks,
			PermanentBlocks: stats.PermanentBlocks,
		})
	}
}

// settingsResponse maps a settings row onto the API response. A nil row
// means nothing was ever saved; the environment-derived fallback policy is
// reported with its effective (normalized) thresholds and empty IP lists.
func settingsResponse(s *repository.SecuritySettings, fallback policy.Policy) models.SecuritySettingsResponse {
	if s == nil {
		p := fallback.Normalized()
		return models.SecuritySettingsResponse{
			RateLimitingEnabled:           p.RateLimitingEnabled,
			IPBlockingEnabled:             p.IPBlockingEnabled,
			MaxRequestsPerMinute:          p.MaxRequestsPerMinute,
			MaxRequestsPerSecond:          p.MaxRequestsPerSecond,
			MaxRequestsPerMinuteAuth:      p.MaxRequestsPerMinuteAuth,
			MaxRequestsPerSecondAuth:      p.MaxRequestsPerSecondAuth,
			ExemptAdminsFromRateLimiting:  p.ExemptAdminsFromRateLimiting,
			ErrorSpikeThresholdPerMinute:  p.ErrorSpikeThresholdPerMinute,
			ErrorSpikeConsecutiveMinutes:  p.ErrorSpikeConsecutiveMinutes,
			AutoPermanentBlacklistEnabled: p.AutoPermanentBlacklistEnabled,
			IPBlockDurationMinutes:        p.IPBlockDurationMinutes,
			WhitelistedIPs:                []string{},
			BlacklistedIPs:                []string{},
		}
	}
	return models.SecuritySettingsResponse{
		RateLimitingEnabled:           s.RateLimitingEnabled,
		IPBlockingEnabled:             s.IPBlockingEnabled,
		MaxRequestsPerMinute:          s.MaxRequestsPerMinute,
		MaxRequestsPerSecond:          s.MaxRequestsPerSecond,
		MaxRequestsPerMinuteAuth:      s.MaxRequestsPerMinuteAuth,
		MaxRequestsPerSecondAuth:      s.MaxRequestsPerSecondAuth,
		ExemptAdminsFromRateLimiting:  s.ExemptAdminsFromRateLimiting,
		ErrorSpikeThresholdPerMinute:  s.ErrorSpikeThresholdPerMinute,
		ErrorSpikeConsecutiveMinutes:  s.ErrorSpikeConsecutiveMinutes,
		AutoPermanentBlacklistEnabled: s.AutoPermanentBlacklistEnabled,
		IPBlockDurationMinutes:        s.IPBlockDurationMinutes,
		WhitelistedIPs:                append([]string{}, s.WhitelistedIPs...),
		BlacklistedIPs:                append([]string{}, s.BlacklistedIPs...),
		UpdatedAt:                     s.UpdatedAt,
	}
}

// canonicalIPList canonicalizes and deduplicates a list of IP addresses.
// Returns the first entry that does not parse, if any.
func canonicalIPList(ips []string) ([]string, string) {
	out := make([]string, 0, len(ips))
	seen := make(map[string]struct{}, len(ips))
	for _, raw := range ips {
		ip := utils.CanonicalIP(raw)
		if ip == "" {
			return nil, raw
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out, ""
}
