package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RateLimitResult is check_and_increment's result record.
type RateLimitResult struct {
	Allowed bool
	Reason  string // distinguishes the minute case from the day case
}

// CheckAndIncrement atomically consults the current-minute counter and
// the sum of today's counters, denies if either limit would be
// exceeded, and otherwise upserts the current-minute counter. A limit
// of 0 for either window always denies.
//
// The read-then-write is wrapped in one transaction so a second caller
// for the same wxid cannot interleave between the check and the
// upsert. That case does arise: the Router calls this before the
// Executor's per-wxid in-flight guard is taken, so two messages from
// one wxid can reach it concurrently.
func (s *Store) CheckAndIncrement(wxid string, maxPerMinute, maxPerDay int) (RateLimitResult, error) {
	if maxPerMinute == 0 || maxPerDay == 0 {
		return RateLimitResult{Allowed: false, Reason: "rate limiting disabled for this caller"}, nil
	}

	now := time.Now().UTC()
	minuteStart := now.Truncate(time.Minute).Format(timeLayout)
	dayStart := now.Truncate(24 * time.Hour).Format(timeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate.check_and_increment: begin tx: %w", err)
	}
	defer tx.Rollback()

	var currentMinuteCount int
	err = tx.QueryRow(`SELECT request_count FROM rate_counters WHERE wxid = ? AND window_start = ?`, wxid, minuteStart).Scan(&currentMinuteCount)
	if err != nil && err != sql.ErrNoRows {
		return RateLimitResult{}, fmt.Errorf("rate.check_and_increment: read minute counter: %w", err)
	}
	if currentMinuteCount+1 > maxPerMinute {
		return RateLimitResult{Allowed: false, Reason: "per-minute limit exceeded"}, tx.Commit()
	}

	var todayCount sql.NullInt64
	err = tx.QueryRow(`SELECT SUM(request_count) FROM rate_counters WHERE wxid = ? AND window_start >= ?`, wxid, dayStart).Scan(&todayCount)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate.check_and_increment: read day counter: %w", err)
	}
	if todayCount.Int64+1 > int64(maxPerDay) {
		return RateLimitResult{Allowed: false, Reason: "per-day limit exceeded"}, tx.Commit()
	}

	_, err = tx.Exec(
		`INSERT INTO rate_counters (wxid, window_start, request_count) VALUES (?, ?, 1)
		 ON CONFLICT(wxid, window_start) DO UPDATE SET request_count = request_count + 1`,
		wxid, minuteStart,
	)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate.check_and_increment: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RateLimitResult{}, fmt.Errorf("rate.check_and_increment: commit: %w", err)
	}
	return RateLimitResult{Allowed: true}, nil
}

// CleanupRateCounters deletes rate counters older than one day.
func (s *Store) CleanupRateCounters() (int64, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(timeLayout)
	res, err := s.db.Exec(`DELETE FROM rate_counters WHERE window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("rate.cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
