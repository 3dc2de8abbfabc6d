package sandbox

import (
	"fmt"
	"os"

	units "github.com/docker/go-units"

	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
)

// Tier mirrors the permission tiers a Friend can hold; blocked never
// reaches container creation (the router short-circuits it earlier).
type Tier string

const (
	TierAdmin   Tier = "admin"
	TierTrusted Tier = "trusted"
	TierNormal  Tier = "normal"
	TierBlocked Tier = "blocked"
)

const (
	appLabel = "app"
	appValue = "cc-bridge"
)

// buildCreateSpec turns the per-tier policy from §4.C of the spec into
// a concrete dockerengine.CreateSpec. Memory parsing uses
// docker/go-units (RAMInBytes), which accepts "<integer>[kKmMgG]?"
// case-insensitively and rejects negative or empty strings; it also
// accepts decimals, t/p suffixes and an optional "b"/"ib" tail. CPU
// counts are config floats converted by cpuToNanoCPUs, not parsed here.
func (m *Manager) buildCreateSpec(wxid string, tier Tier) (dockerengine.CreateSpec, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	workspace, claudeCfg := UserDataDir(dataDir(m.cfg), wxid)

	if err := os.MkdirAll(workspace, 0755); err != nil {
		return dockerengine.CreateSpec{}, fmt.Errorf("creating workspace dir: %w", err)
	}
	if err := os.MkdirAll(claudeCfg, 0755); err != nil {
		return dockerengine.CreateSpec{}, fmt.Errorf("creating claude-config dir: %w", err)
	}

	memStr := m.cfg.Docker.Limits.Memory
	cpus := m.cfg.Docker.Limits.CPUs
	network := m.cfg.Docker.Network.Normal
	if tier == TierAdmin {
		memStr = m.cfg.Docker.Limits.AdminMemory
		cpus = m.cfg.Docker.Limits.AdminCPUs
		network = m.cfg.Docker.Network.Admin
	} else if tier == TierTrusted {
		network = m.cfg.Docker.Network.Trusted
	}

	memBytes, err := units.RAMInBytes(memStr)
	if err != nil {
		return dockerengine.CreateSpec{}, fmt.Errorf("parsing memory limit %q: %w", memStr, err)
	}

	var env []string
	env = append(env, "WXID="+wxid)
	if tok := os.Getenv("CLAUDE_CODE_OAUTH_TOKEN"); tok != "" {
		env = append(env, "CLAUDE_CODE_OAUTH_TOKEN="+tok)
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		env = append(env, "ANTHROPIC_API_KEY="+key)
	}

	return dockerengine.CreateSpec{
		Name:  name,
		Image: m.cfg.Docker.Image,
		Cmd:   []string{"sleep", "infinity"},
		Env:   env,
		Labels: map[string]string{
			appLabel:      appValue,
			"wxid":        wxid,
			"permission":  string(tier),
		},
		Mounts: []dockerengine.BindMount{
			{Source: workspace, Target: "/home/sandbox/workspace"},
			{Source: claudeCfg, Target: "/home/sandbox/.claude"},
		},
		Memory:        memBytes,
		NanoCPUs:      cpuToNanoCPUs(cpus),
		PidsLimit:     m.cfg.Docker.Limits.Pids,
		TmpSize:       m.cfg.Docker.Limits.TmpSize,
		ReadOnly:      true,
		CapDropAll:    true,
		NoNewPrivs:    true,
		NetworkName:   network,
		RestartPolicy: "unless-stopped",
		User:          "sandbox",
	}, nil
}

// cpuToNanoCPUs converts a floating-point CPU count to nanoseconds of
// CPU time per second, rounded to the nearest integer, per §6.
func cpuToNanoCPUs(cpus float64) int64 {
	return int64(cpus*1e9 + 0.5)
}

func dataDir(cfg *config.Config) string {
	resolved, err := config.ResolveDataDir(cfg.Docker.DataDir)
	if err != nil {
		return cfg.Docker.DataDir
	}
	return resolved
}
