package executor

import (
	"fmt"
	"time"

	"cc-bridge/internal/store"
)

// sessionTimestampLayout is the only timestamp format this system
// recognizes for last_active. The spec is explicit that this is
// strict: no ISO-8601 "T" separator, and anything else is treated as
// expired rather than silently widened to accept other layouts.
const sessionTimestampLayout = "2006-01-02 15:04:05"

// resolveSession implements step 3 of the Executor pipeline: fetch the
// active session, apply expiry, and create a fresh one if needed.
// Touching (last_active refresh + message_count increment) happens
// after dispatch succeeds, in Execute, not here.
func (e *Executor) resolveSession(wxid string) (*store.Session, error) {
	sess, err := e.store.GetActive(wxid)
	if err != nil {
		return nil, fmt.Errorf("fetching active session: %w", err)
	}

	windowMinutes := e.cfg.Session.ExpireMinutes
	if windowMinutes <= 0 {
		windowMinutes = 60
	}

	if sess != nil && !isExpired(sess.LastActive, windowMinutes, time.Now().UTC()) {
		return sess, nil
	}

	if sess != nil {
		// Expired: clear this user's sessions so a stale row doesn't
		// linger (and so GetActive won't keep returning it).
		if err := e.store.ClearUser(wxid); err != nil {
			return nil, fmt.Errorf("clearing expired session: %w", err)
		}
	}

	id := newSessionID()
	if err := e.store.Create(id, wxid, ""); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return e.store.GetActive(wxid)
}

// isExpired reports whether lastActive (in the strict session
// timestamp format) is more than windowMinutes in the past relative to
// now. An unparseable timestamp is treated as expired (safe default).
// A future timestamp is never expired — elapsed time is computed as a
// signed duration and checked for sign before comparing against the
// window, so a negative "elapsed" (i.e. the session is ahead of now)
// cannot wrap around to a huge unsigned age.
func isExpired(lastActive string, windowMinutes int, now time.Time) bool {
	parsed, err := time.Parse(sessionTimestampLayout, lastActive)
	if err != nil {
		return true
	}

	elapsed := now.Sub(parsed) // signed: negative if parsed is in the future
	if elapsed < 0 {
		return false
	}
	return elapsed > time.Duration(windowMinutes)*time.Minute
}
