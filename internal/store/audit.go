package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// AuditEntry is one row of the audit_log table.
type AuditEntry struct {
	ID            int64
	Wxid          string
	Nickname      string
	Direction     string
	Message       sql.NullString
	ClaudeSession sql.NullString
	Timestamp     string
}

// Log appends an audit row. message may be empty (elided by config).
func (s *Store) Log(wxid, nickname, direction, message, claudeSession string) error {
	if direction != DirectionIn && direction != DirectionOut {
		return fmt.Errorf("audit.log: invalid direction %q", direction)
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log (wxid, nickname, direction, message, claude_session, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		wxid, nickname, direction, nullIfEmpty(message), nullIfEmpty(claudeSession), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("audit.log(%s): %w", wxid, err)
	}
	return nil
}

// GetByUser returns the most recent limit audit rows for wxid.
func (s *Store) GetByUser(wxid string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, wxid, nickname, direction, message, claude_session, timestamp FROM audit_log
		 WHERE wxid = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		wxid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit.get_by_user(%s): %w", wxid, err)
	}
	defer rows.Close()
	return scanAudit(rows)
}

// GetRecent returns the most recent limit audit rows across all users.
func (s *Store) GetRecent(limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, wxid, nickname, direction, message, claude_session, timestamp FROM audit_log
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit.get_recent: %w", err)
	}
	defer rows.Close()
	return scanAudit(rows)
}

func scanAudit(rows *sql.Rows) ([]AuditEntry, error) {
	var out []AuditEntry
	for rows.Next() {
		var a AuditEntry
		if err := rows.Scan(&a.ID, &a.Wxid, &a.Nickname, &a.Direction, &a.Message, &a.ClaudeSession, &a.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
