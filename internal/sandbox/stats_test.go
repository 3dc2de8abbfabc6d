package sandbox

import (
	"context"
	"testing"

	"cc-bridge/internal/dockerengine"
)

func TestStatsReturnsNilForMissingContainer(t *testing.T) {
	m, _ := testManager(t)
	stats, err := m.Stats(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != nil {
		t.Fatalf("expected nil stats for missing container, got %+v", stats)
	}
}

func TestStatsReturnsSample(t *testing.T) {
	m, engine := testManager(t)
	ctx := context.Background()
	_, _ = m.EnsureContainer(ctx, "u1", TierNormal)

	engine.StatsFn = func(ctx context.Context, id string) (dockerengine.Stats, error) {
		return dockerengine.Stats{CPUPercent: 12.5, MemUsage: 1024, MemLimit: 2048, MemPercent: 50, PIDs: 3}, nil
	}

	stats, err := m.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats == nil || stats.CPUPercent != 12.5 || stats.PIDs != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDiskUsageParsesDuOutput(t *testing.T) {
	m, engine := testManager(t)
	ctx := context.Background()
	_, _ = m.EnsureContainer(ctx, "u1", TierNormal)

	engine.ExecFn = func(ctx context.Context, id string, cmd []string, asUser string) (dockerengine.ExecResult, error) {
		return dockerengine.ExecResult{Stdout: "128M\t/home/sandbox/workspace\n"}, nil
	}

	got, err := m.DiskUsage(ctx, "u1")
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if got != "128M" {
		t.Fatalf("DiskUsage = %q, want 128M", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		0:           "0B",
		512:         "512B",
		1536:        "1.5KiB",
		3 * 1 << 20: "3.0MiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
