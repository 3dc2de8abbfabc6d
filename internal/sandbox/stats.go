package sandbox

import (
	"context"
	"fmt"
	"strings"
)

// ContainerStats is stats(wxid)'s result shape.
type ContainerStats struct {
	CPUPercent float64
	MemUsage   uint64
	MemLimit   uint64
	MemPercent float64
	PIDs       uint64
}

// Stats takes a single-shot resource sample of wxid's container. nil,
// nil is returned if the container doesn't exist (not an error: the
// spec's stats(wxid) return type is optional).
func (m *Manager) Stats(ctx context.Context, wxid string) (*ContainerStats, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return nil, nil
	}

	raw, err := m.engine.StatsOneShot(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("sampling stats for %s: %w", name, err)
	}
	return &ContainerStats{
		CPUPercent: raw.CPUPercent,
		MemUsage:   raw.MemUsage,
		MemLimit:   raw.MemLimit,
		MemPercent: raw.MemPercent,
		PIDs:       raw.PIDs,
	}, nil
}

// DiskUsage reports the size of the workspace directory as measured
// from inside the container by `du -sh`, per the spec's explicit
// wording — not the Docker Engine's own aggregate disk-usage API,
// which reports space at the image/layer level rather than per-user
// workspace size.
func (m *Manager) DiskUsage(ctx context.Context, wxid string) (string, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return "", fmt.Errorf("container %s does not exist", name)
	}

	res, err := m.engine.Exec(ctx, info.ID, []string{"du", "-sh", "/home/sandbox/workspace"}, "sandbox")
	if err != nil {
		return "", fmt.Errorf("du failed for %s: %w", name, err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return "unknown", nil
	}
	return fields[0], nil
}

// FormatBytes renders a byte count in the usual human-readable units.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for val := n / unit; val >= unit; val /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
