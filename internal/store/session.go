package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one row of the sessions table.
type Session struct {
	ID            string
	Wxid          string
	ClaudeSession sql.NullString
	CreatedAt     string
	LastActive    string
	MessageCount  int
}

// GetActive returns the session with the latest last_active for wxid,
// or (nil, nil) if the user has none.
func (s *Store) GetActive(wxid string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, wxid, claude_session, created_at, last_active, message_count
		 FROM sessions WHERE wxid = ? ORDER BY last_active DESC LIMIT 1`,
		wxid,
	)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.Wxid, &sess.ClaudeSession, &sess.CreatedAt, &sess.LastActive, &sess.MessageCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session.get_active(%s): %w", wxid, err)
	}
	return &sess, nil
}

// Create inserts a new session row. claudeSession may be empty if none
// has been learned yet.
func (s *Store) Create(id, wxid, claudeSession string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, wxid, claude_session, created_at, last_active, message_count) VALUES (?, ?, ?, ?, ?, 0)`,
		id, wxid, nullIfEmpty(claudeSession), now, now,
	)
	if err != nil {
		return fmt.Errorf("session.create(%s): %w", id, err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Touch updates last_active to now and increments message_count.
func (s *Store) Touch(id string) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.Exec(`UPDATE sessions SET last_active = ?, message_count = message_count + 1 WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("session.touch(%s): %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session.touch: no such session %s", id)
	}
	return nil
}

// SetClaudeSession persists Claude's own resumption token once learned.
func (s *Store) SetClaudeSession(id, claudeSession string) error {
	_, err := s.db.Exec(`UPDATE sessions SET claude_session = ? WHERE id = ?`, claudeSession, id)
	if err != nil {
		return fmt.Errorf("session.set_claude_session(%s): %w", id, err)
	}
	return nil
}

// ClearUser deletes every session row for wxid (used by /clear and
// destructive admin commands).
func (s *Store) ClearUser(wxid string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE wxid = ?`, wxid)
	if err != nil {
		return fmt.Errorf("session.clear_user(%s): %w", wxid, err)
	}
	return nil
}

// CleanExpired deletes sessions whose last_active is older than
// minutes ago. Comparison is done in SQL against a UTC cutoff in the
// strict "YYYY-MM-DD HH:MM:SS" layout sessions are stored in, so it
// composes correctly with the format invariant the rest of the system
// enforces when parsing timestamps in Go.
func (s *Store) CleanExpired(minutes int) (int64, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute).Format(timeLayout)
	res, err := s.db.Exec(`DELETE FROM sessions WHERE last_active < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session.clean_expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
