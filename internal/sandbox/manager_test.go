package sandbox

import (
	"context"
	"testing"

	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
)

func testManager(t *testing.T) (*Manager, *dockerengine.MockEngine) {
	t.Helper()
	cfg := config.Default()
	cfg.Docker.DataDir = t.TempDir()
	engine := dockerengine.NewMockEngine()
	return New(engine, cfg), engine
}

func TestEnsureContainerCreatesAndStarts(t *testing.T) {
	m, engine := testManager(t)
	ctx := context.Background()

	name, err := m.EnsureContainer(ctx, "u1", TierNormal)
	if err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}
	if name != "claude-friend-u1" {
		t.Fatalf("unexpected name %q", name)
	}

	info, found, err := engine.ContainerByName(ctx, name)
	if err != nil || !found {
		t.Fatalf("expected container to exist, found=%v err=%v", found, err)
	}
	if info.State != "running" {
		t.Fatalf("expected running, got %s", info.State)
	}
	if info.Labels["permission"] != "normal" {
		t.Fatalf("expected permission label normal, got %q", info.Labels["permission"])
	}
}

func TestEnsureContainerIdempotent(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.EnsureContainer(ctx, "u1", TierNormal); err != nil {
		t.Fatalf("first EnsureContainer: %v", err)
	}
	if _, err := m.EnsureContainer(ctx, "u1", TierNormal); err != nil {
		t.Fatalf("second EnsureContainer: %v", err)
	}
}

func TestDestroyNonExistentSucceeds(t *testing.T) {
	m, _ := testManager(t)
	if err := m.Destroy(context.Background(), "ghost"); err != nil {
		t.Fatalf("Destroy of non-existent container should succeed, got %v", err)
	}
}

func TestRebuildRecreatesContainer(t *testing.T) {
	m, engine := testManager(t)
	ctx := context.Background()

	name, _ := m.EnsureContainer(ctx, "u1", TierNormal)
	oldInfo, _, _ := engine.ContainerByName(ctx, name)

	newName, err := m.Rebuild(ctx, "u1", TierTrusted)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if newName != name {
		t.Fatalf("rebuilt container name changed: %q != %q", newName, name)
	}
	newInfo, found, err := engine.ContainerByName(ctx, name)
	if err != nil || !found {
		t.Fatalf("expected rebuilt container, found=%v err=%v", found, err)
	}
	if newInfo.ID == oldInfo.ID {
		t.Fatalf("expected a fresh container ID after rebuild")
	}
	if newInfo.Labels["permission"] != "trusted" {
		t.Fatalf("expected trusted tier after rebuild, got %q", newInfo.Labels["permission"])
	}
}

func TestListContainersFiltersByAppLabel(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.EnsureContainer(ctx, "u1", TierNormal); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}
	if _, err := m.EnsureContainer(ctx, "u2", TierAdmin); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}

	list, err := m.ListContainers(ctx)
	if err != nil {
		t.Fatalf("ListContainers: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 containers, got %d", len(list))
	}
}

func TestStopAllAndCleanup(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.EnsureContainer(ctx, "u1", TierNormal); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}

	stopped, err := m.StopAll(ctx)
	if err != nil || stopped != 1 {
		t.Fatalf("StopAll: stopped=%d err=%v", stopped, err)
	}

	pruned, err := m.Cleanup(ctx)
	if err != nil || pruned != 1 {
		t.Fatalf("Cleanup: pruned=%d err=%v", pruned, err)
	}

	list, _ := m.ListContainers(ctx)
	if len(list) != 0 {
		t.Fatalf("expected no containers after cleanup, got %d", len(list))
	}
}

func TestInitNetworksIsIdempotent(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	if err := m.InitNetworks(ctx); err != nil {
		t.Fatalf("InitNetworks: %v", err)
	}
	if err := m.InitNetworks(ctx); err != nil {
		t.Fatalf("InitNetworks (second call): %v", err)
	}
}

func TestExecClaudeAgainstRunningContainer(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.EnsureContainer(ctx, "u1", TierNormal); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}

	res, err := m.ExecClaude(ctx, "u1", []string{"claude", "-p", "hi"})
	if err != nil {
		t.Fatalf("ExecClaude: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK result")
	}
}

func TestExecClaudeMissingContainer(t *testing.T) {
	m, _ := testManager(t)
	if _, err := m.ExecClaude(context.Background(), "ghost", []string{"claude"}); err == nil {
		t.Fatal("expected error for missing container")
	}
}
