package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Permission tier literals, matching the CHECK constraint in schema.
const (
	PermissionAdmin   = "admin"
	PermissionTrusted = "trusted"
	PermissionNormal  = "normal"
	PermissionBlocked = "blocked"
)

// Friend is one row of the friends table.
type Friend struct {
	Wxid       string
	Nickname   string
	RemarkName sql.NullString
	Permission string
	AddedAt    string
	AddedBy    sql.NullString
	Notes      sql.NullString
}

// FriendUpsert carries the optional fields upsert accepts; a nil
// pointer means "absent", which must not overwrite an existing
// non-null value (coalesce-on-conflict).
type FriendUpsert struct {
	Nickname   *string
	RemarkName *string
	Permission *string
	AddedBy    *string
	Notes      *string
}

// Get fetches a Friend by wxid. Returns (nil, nil) if not found.
func (s *Store) Get(wxid string) (*Friend, error) {
	row := s.db.QueryRow(`SELECT wxid, nickname, remark_name, permission, added_at, added_by, notes FROM friends WHERE wxid = ?`, wxid)
	var f Friend
	if err := row.Scan(&f.Wxid, &f.Nickname, &f.RemarkName, &f.Permission, &f.AddedAt, &f.AddedBy, &f.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("friend.get(%s): %w", wxid, err)
	}
	return &f, nil
}

// Upsert inserts a new Friend row or updates the fields provided in fu,
// coalescing absent fields against the existing row. On insert, an
// absent Permission defaults to "normal".
func (s *Store) Upsert(wxid string, fu FriendUpsert) error {
	existing, err := s.Get(wxid)
	if err != nil {
		return err
	}

	if existing == nil {
		nickname := ""
		if fu.Nickname != nil {
			nickname = *fu.Nickname
		}
		permission := PermissionNormal
		if fu.Permission != nil {
			permission = *fu.Permission
		}
		_, err := s.db.Exec(
			`INSERT INTO friends (wxid, nickname, remark_name, permission, added_at, added_by, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			wxid, nickname, nullableStr(fu.RemarkName), permission, time.Now().UTC().Format(timeLayout), nullableStr(fu.AddedBy), nullableStr(fu.Notes),
		)
		if err != nil {
			return fmt.Errorf("friend.upsert(%s) insert: %w", wxid, err)
		}
		return nil
	}

	nickname := existing.Nickname
	if fu.Nickname != nil {
		nickname = *fu.Nickname
	}
	remark := existing.RemarkName
	if fu.RemarkName != nil {
		remark = sql.NullString{String: *fu.RemarkName, Valid: true}
	}
	permission := existing.Permission
	if fu.Permission != nil {
		permission = *fu.Permission
	}
	addedBy := existing.AddedBy
	if fu.AddedBy != nil {
		addedBy = sql.NullString{String: *fu.AddedBy, Valid: true}
	}
	notes := existing.Notes
	if fu.Notes != nil {
		notes = sql.NullString{String: *fu.Notes, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE friends SET nickname = ?, remark_name = ?, permission = ?, added_by = ?, notes = ? WHERE wxid = ?`,
		nickname, remark, permission, addedBy, notes, wxid,
	)
	if err != nil {
		return fmt.Errorf("friend.upsert(%s) update: %w", wxid, err)
	}
	return nil
}

func nullableStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// GetPermission returns the friend's tier, or ("", false) if unknown.
func (s *Store) GetPermission(wxid string) (string, bool, error) {
	f, err := s.Get(wxid)
	if err != nil {
		return "", false, err
	}
	if f == nil {
		return "", false, nil
	}
	return f.Permission, true, nil
}

// SetPermission updates a friend's tier.
func (s *Store) SetPermission(wxid, tier string) error {
	res, err := s.db.Exec(`UPDATE friends SET permission = ? WHERE wxid = ?`, tier, wxid)
	if err != nil {
		return fmt.Errorf("friend.set_permission(%s): %w", wxid, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("friend.set_permission: no such friend %s", wxid)
	}
	return nil
}

// ListAll returns every friend ordered by added_at descending.
func (s *Store) ListAll() ([]Friend, error) {
	rows, err := s.db.Query(`SELECT wxid, nickname, remark_name, permission, added_at, added_by, notes FROM friends ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("friend.list_all: %w", err)
	}
	defer rows.Close()
	return scanFriends(rows)
}

// ListByPermission returns every friend with the given tier.
func (s *Store) ListByPermission(tier string) ([]Friend, error) {
	rows, err := s.db.Query(`SELECT wxid, nickname, remark_name, permission, added_at, added_by, notes FROM friends WHERE permission = ? ORDER BY added_at DESC`, tier)
	if err != nil {
		return nil, fmt.Errorf("friend.list_by_permission(%s): %w", tier, err)
	}
	defer rows.Close()
	return scanFriends(rows)
}

func scanFriends(rows *sql.Rows) ([]Friend, error) {
	var out []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.Wxid, &f.Nickname, &f.RemarkName, &f.Permission, &f.AddedAt, &f.AddedBy, &f.Notes); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Remove deletes a friend row.
func (s *Store) Remove(wxid string) error {
	_, err := s.db.Exec(`DELETE FROM friends WHERE wxid = ?`, wxid)
	if err != nil {
		return fmt.Errorf("friend.remove(%s): %w", wxid, err)
	}
	return nil
}

// FindByNickname substring-matches q against nickname or remark_name.
// q is escaped so any character the LIKE pattern language treats as a
// wildcard (%, _) is matched literally, closing the "wildcard leakage"
// property the spec calls out explicitly.
func (s *Store) FindByNickname(q string) ([]Friend, error) {
	escaped := escapeLike(q)
	pattern := "%" + escaped + "%"
	rows, err := s.db.Query(
		`SELECT wxid, nickname, remark_name, permission, added_at, added_by, notes FROM friends
		 WHERE nickname LIKE ? ESCAPE '\' OR remark_name LIKE ? ESCAPE '\'
		 ORDER BY added_at DESC`,
		pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("friend.find_by_nickname(%s): %w", q, err)
	}
	defer rows.Close()
	return scanFriends(rows)
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
