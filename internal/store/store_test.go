package store

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestFriendUpsertCreatesWithDefaults(t *testing.T) {
	s := newTestStore(t)

	if err := s.Upsert("u1", FriendUpsert{Nickname: strPtr("Alice")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	f, err := s.Get("u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f == nil {
		t.Fatal("expected friend to exist")
	}
	if f.Nickname != "Alice" {
		t.Errorf("Nickname = %q, want Alice", f.Nickname)
	}
	if f.Permission != PermissionNormal {
		t.Errorf("Permission = %q, want normal default", f.Permission)
	}
}

func TestFriendUpsertDoesNotClobberAbsentFields(t *testing.T) {
	s := newTestStore(t)

	if err := s.Upsert("u1", FriendUpsert{Nickname: strPtr("N1")}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := s.Upsert("u1", FriendUpsert{RemarkName: strPtr("R1")}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	f, _ := s.Get("u1")
	if f.Nickname != "N1" {
		t.Errorf("Nickname clobbered: got %q, want N1", f.Nickname)
	}
	if !f.RemarkName.Valid || f.RemarkName.String != "R1" {
		t.Errorf("RemarkName = %+v, want R1", f.RemarkName)
	}
}

func TestFindByNicknameTreatsWildcardsAsLiteral(t *testing.T) {
	s := newTestStore(t)
	if err := s.Upsert("u1", FriendUpsert{Nickname: strPtr("100%_done")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert("u2", FriendUpsert{Nickname: strPtr("XdoneY")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Searching for the literal substring "%_" should only match u1,
	// not leak into u2 via % and _ acting as SQL wildcards.
	got, err := s.FindByNickname("%_")
	if err != nil {
		t.Fatalf("FindByNickname: %v", err)
	}
	if len(got) != 1 || got[0].Wxid != "u1" {
		t.Fatalf("expected exactly u1, got %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	if err := s.Upsert("u1", FriendUpsert{Nickname: strPtr("Alice")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.Create("sess-1", "u1", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := s.GetActive("u1")
	if err != nil || active == nil {
		t.Fatalf("GetActive: active=%v err=%v", active, err)
	}
	if active.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", active.MessageCount)
	}

	if err := s.Touch("sess-1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	active, _ = s.GetActive("u1")
	if active.MessageCount != 1 {
		t.Errorf("MessageCount after touch = %d, want 1", active.MessageCount)
	}

	if err := s.SetClaudeSession("sess-1", "claude-abc"); err != nil {
		t.Fatalf("SetClaudeSession: %v", err)
	}
	active, _ = s.GetActive("u1")
	if !active.ClaudeSession.Valid || active.ClaudeSession.String != "claude-abc" {
		t.Errorf("ClaudeSession = %+v, want claude-abc", active.ClaudeSession)
	}

	if err := s.ClearUser("u1"); err != nil {
		t.Fatalf("ClearUser: %v", err)
	}
	active, _ = s.GetActive("u1")
	if active != nil {
		t.Errorf("expected no active session after ClearUser, got %+v", active)
	}
}

func TestAuditLogAndRetrieval(t *testing.T) {
	s := newTestStore(t)
	if err := s.Log("u1", "Alice", DirectionIn, "hi", ""); err != nil {
		t.Fatalf("Log in: %v", err)
	}
	if err := s.Log("u1", "Alice", DirectionOut, "hello back", ""); err != nil {
		t.Fatalf("Log out: %v", err)
	}

	entries, err := s.GetByUser("u1", 10)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Direction != DirectionOut {
		t.Errorf("expected most recent (out) first, got %q", entries[0].Direction)
	}
}

func TestRateLimitPerMinuteBoundary(t *testing.T) {
	s := newTestStore(t)

	var allowedCount int
	var lastReason string
	for i := 0; i < 4; i++ {
		res, err := s.CheckAndIncrement("u1", 3, 10)
		if err != nil {
			t.Fatalf("CheckAndIncrement: %v", err)
		}
		if res.Allowed {
			allowedCount++
		} else {
			lastReason = res.Reason
		}
	}
	if allowedCount != 3 {
		t.Errorf("allowedCount = %d, want 3", allowedCount)
	}
	if lastReason != "per-minute limit exceeded" {
		t.Errorf("reason = %q, want per-minute denial", lastReason)
	}
}

func TestRateLimitZeroLimitAlwaysDenies(t *testing.T) {
	s := newTestStore(t)
	res, err := s.CheckAndIncrement("u1", 0, 10)
	if err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	if res.Allowed {
		t.Error("expected denial when max_per_minute is 0")
	}
}
