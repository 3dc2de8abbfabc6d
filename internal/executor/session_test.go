package executor

import (
	"testing"
	"time"
)

func TestIsExpiredPastBeyondWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lastActive := now.Add(-90 * time.Minute).Format(sessionTimestampLayout)
	if !isExpired(lastActive, 60, now) {
		t.Error("expected expired: 90 minutes ago with a 60 minute window")
	}
}

func TestIsExpiredPastWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lastActive := now.Add(-30 * time.Minute).Format(sessionTimestampLayout)
	if isExpired(lastActive, 60, now) {
		t.Error("expected not expired: 30 minutes ago with a 60 minute window")
	}
}

func TestIsExpiredFutureTimestampNeverExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lastActive := now.Add(5 * time.Minute).Format(sessionTimestampLayout)
	if isExpired(lastActive, 60, now) {
		t.Error("a last_active in the future must never be treated as expired")
	}
}

func TestIsExpiredUnparseableTreatedAsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !isExpired("2026-01-01T12:00:00Z", 60, now) {
		t.Error("ISO-8601 'T' separator must not be accepted; should be treated as expired")
	}
	if !isExpired("not a timestamp", 60, now) {
		t.Error("garbage input should be treated as expired")
	}
}

func TestIsExpiredExactBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lastActive := now.Add(-60 * time.Minute).Format(sessionTimestampLayout)
	if isExpired(lastActive, 60, now) {
		t.Error("exactly at the window boundary (delta == W) must not be expired; only delta > W")
	}
}
