package router

import (
	"context"
	"path/filepath"
	"testing"

	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
	"cc-bridge/internal/executor"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
)

func testRouter(t *testing.T, cfg *config.Config) (*Router, *store.Store, *dockerengine.MockEngine) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Docker.DataDir = t.TempDir()

	st, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine := dockerengine.NewMockEngine()
	sb := sandbox.New(engine, cfg)
	ex := executor.New(st, sb, cfg)

	return New(st, ex, sb, cfg), st, engine
}

func TestHandleRegistersFirstTimeFriendAsDefaultTier(t *testing.T) {
	r, st, _ := testRouter(t, nil)

	r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Alice", Text: "hello"})

	f, err := st.Get("u1")
	if err != nil || f == nil {
		t.Fatalf("expected a friend row to be created, err=%v", err)
	}
	if f.Permission != store.PermissionNormal {
		t.Fatalf("expected default permission normal, got %q", f.Permission)
	}
}

func TestHandleGrantsAdminToConfiguredAdminWxid(t *testing.T) {
	cfg := config.Default()
	cfg.AdminWxid = "u1"
	r, st, _ := testRouter(t, cfg)

	r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Boss", Text: "hi"})

	f, _ := st.Get("u1")
	if f == nil || f.Permission != store.PermissionAdmin {
		t.Fatalf("expected admin wxid to be registered as admin, got %+v", f)
	}
}

func TestHandleBlockedFriendGetsNoReply(t *testing.T) {
	r, st, _ := testRouter(t, nil)
	nickname := "Bob"
	perm := store.PermissionBlocked
	if err := st.Upsert("u2", store.FriendUpsert{Nickname: &nickname, Permission: &perm}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u2", Nickname: "Bob", Text: "hello"})
	if sent {
		t.Fatalf("expected no reply for a blocked friend, got %q", reply)
	}
}

func TestHandleRateLimitDeniesBeyondMaxPerMinute(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.MaxPerMinute = 1
	r, _, _ := testRouter(t, cfg)
	ctx := context.Background()

	r.Handle(ctx, Inbound{Wxid: "u1", Nickname: "Alice", Text: "hi"})
	reply, sent := r.Handle(ctx, Inbound{Wxid: "u1", Nickname: "Alice", Text: "hi again"})
	if !sent || reply != "per-minute limit exceeded" {
		t.Fatalf("expected a rate-limit denial reply, got sent=%v reply=%q", sent, reply)
	}
}

func TestHandleHelpCommandListsOnlyVisibleCommands(t *testing.T) {
	r, _, _ := testRouter(t, nil)
	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Alice", Text: "/help"})
	if !sent {
		t.Fatal("expected a reply")
	}
	if contains(reply, "/allow") {
		t.Fatalf("a normal-tier caller should not see admin commands: %q", reply)
	}
	if !contains(reply, "/status") {
		t.Fatalf("expected /help to list /status: %q", reply)
	}
}

func TestHandleAdminOnlyCommandDeniedForNormalTier(t *testing.T) {
	r, _, _ := testRouter(t, nil)
	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Alice", Text: "/list"})
	if !sent || !contains(reply, "Insufficient permission") {
		t.Fatalf("expected an insufficient-permission reply, got %q", reply)
	}
}

func TestHandleUnknownSlashWordFallsThroughToExecutor(t *testing.T) {
	r, _, engine := testRouter(t, nil)
	engine.ExecFn = func(ctx context.Context, id string, cmd []string, user string) (dockerengine.ExecResult, error) {
		return dockerengine.ExecResult{ExitCode: 0, Stdout: "claude reply"}, nil
	}

	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Alice", Text: "/notacommand do something"})
	if !sent || reply != "claude reply" {
		t.Fatalf("expected fallthrough to executor, got sent=%v reply=%q", sent, reply)
	}
}

func TestHandleSecurityFilterBlocksNonAdmin(t *testing.T) {
	cfg := config.Default()
	cfg.Security.BlockedPatterns = []string{"rm -rf"}
	r, _, _ := testRouter(t, cfg)

	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Alice", Text: "please run RM -RF /"})
	if !sent || !contains(reply, "blocked") {
		t.Fatalf("expected the security filter to block this message, got %q", reply)
	}
}

func TestHandleSecurityFilterBypassedForAdmin(t *testing.T) {
	cfg := config.Default()
	cfg.Security.BlockedPatterns = []string{"rm -rf"}
	cfg.AdminWxid = "u1"
	r, _, engine := testRouter(t, cfg)
	engine.ExecFn = func(ctx context.Context, id string, cmd []string, user string) (dockerengine.ExecResult, error) {
		return dockerengine.ExecResult{ExitCode: 0, Stdout: "ok"}, nil
	}

	reply, sent := r.Handle(context.Background(), Inbound{Wxid: "u1", Nickname: "Admin", Text: "rm -rf /tmp"})
	if !sent || contains(reply, "blocked") {
		t.Fatalf("admin should bypass the security filter, got %q", reply)
	}
}

func TestHandleAllowResolvesByNicknameAndSetsTier(t *testing.T) {
	cfg := config.Default()
	cfg.AdminWxid = "admin1"
	r, st, _ := testRouter(t, cfg)
	ctx := context.Background()

	r.Handle(ctx, Inbound{Wxid: "u1", Nickname: "Alice", Text: "hi"})
	reply, sent := r.Handle(ctx, Inbound{Wxid: "admin1", Nickname: "Admin", Text: "/allow Alice trusted"})
	if !sent || !contains(reply, "trusted") {
		t.Fatalf("expected a confirmation mentioning trusted, got %q", reply)
	}

	f, _ := st.Get("u1")
	if f.Permission != store.PermissionTrusted {
		t.Fatalf("expected Alice to be promoted to trusted, got %q", f.Permission)
	}
}

func TestHandleAllowAmbiguousNameReturnsError(t *testing.T) {
	cfg := config.Default()
	cfg.AdminWxid = "admin1"
	r, _, _ := testRouter(t, cfg)
	ctx := context.Background()

	r.Handle(ctx, Inbound{Wxid: "u1", Nickname: "Alice", Text: "hi"})
	r.Handle(ctx, Inbound{Wxid: "u2", Nickname: "Alice", Text: "hi"})

	reply, sent := r.Handle(ctx, Inbound{Wxid: "admin1", Nickname: "Admin", Text: "/allow Alice"})
	if !sent || !contains(reply, "Multiple friends") {
		t.Fatalf("expected an ambiguity error, got %q", reply)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
