package testutil

import (
	"testing"
	"time"
)

func TestSampleSettings(t *testing.T) {
	settings := SampleSettings()

	if settings == nil {
		t.Fatal("SampleSettings returned nil")
	}
	if !settings.RateLimitingEnabled {
		t.Error("expected RateLimitingEnabled to be true")
	}
	if !settings.IPBlockingEnabled {
		t.Error("expected IPBlockingEnabled to be true")
	}
	if settings.MaxRequestsPerMinute != 300 {
		t.Errorf("expected 300 requests per minute, got %d", settings.MaxRequestsPerMinute)
	}
	if settings.IPBlockDurationMinutes != 30 {
		t.Errorf("expected 30 minute block duration, got %d", settings.IPBlockDurationMinutes)
	}
	if settings.WhitelistedIPs == nil {
		t.Error("WhitelistedIPs should be initialized")
	}
	if settings.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestSampleBlockedIP(t *testing.T) {
	block := SampleBlockedIP("203.0.113.9")

	if block == nil {
		t.Fatal("SampleBlockedIP returned nil")
	}
	if block.IPAddress != "203.0.113.9" {
		t.Errorf("expected IP 203.0.113.9, got %s", block.IPAddress)
	}
	if block.Permanent {
		t.Error("expected a temporary block")
	}
	if block.ExpiresAt == nil {
		t.Fatal("ExpiresAt should be set for a temporary block")
	}
	if !block.ExpiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be in the future")
	}
	if block.BlockedAt.IsZero() {
		t.Error("BlockedAt should be set")
	}
}

func TestSampleSecurityEvent(t *testing.T) {
	event := SampleSecurityEvent("rate_limit_exceeded")

	if event == nil {
		t.Fatal("SampleSecurityEvent returned nil")
	}
	if event.EventType != "rate_limit_exceeded" {
		t.Errorf("expected event type rate_limit_exceeded, got %s", event.EventType)
	}
	if event.EventID == "" {
		t.Error("EventID should be set")
	}
	if event.IPAddress == "" {
		t.Error("IPAddress should be set")
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}
