package sandbox

import (
	"context"
	"fmt"
	"time"
)

// execCommandTimeout bounds admin-grade exec_command calls; it is
// intentionally fixed, not configurable, since it is not part of the
// per-message Claude pipeline's own timeout budget.
const execCommandTimeout = 30 * time.Second

// ClaudeExecResult is exec_claude's result record, a sum-type stand-in
// (ok/output/stderr) rather than an error the caller must unwrap.
type ClaudeExecResult struct {
	OK     bool
	Output string
	Stderr string
}

// ClaudeExecOptions configures one exec_claude dispatch.
type ClaudeExecOptions struct {
	ClaudeSession string // resume token, if one has been learned
	Permission    Tier
	TimeoutS      int
}

// ExecClaude runs the Claude CLI inside wxid's container. Building the
// actual CLI argument list and applying the process-level timeout is
// the Executor's job (internal/executor); this method is the thin
// "run this command, return stdout/stderr" seam the Executor drives so
// the Manager stays unaware of sessions and the Executor stays unaware
// of container internals.
func (m *Manager) ExecClaude(ctx context.Context, wxid string, cmd []string) (ClaudeExecResult, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return ClaudeExecResult{}, fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return ClaudeExecResult{}, fmt.Errorf("container %s does not exist", name)
	}

	res, err := m.engine.Exec(ctx, info.ID, cmd, "sandbox")
	if err != nil {
		return ClaudeExecResult{}, err
	}
	return ClaudeExecResult{OK: res.ExitCode == 0, Output: res.Stdout, Stderr: res.Stderr}, nil
}

// ExecCommand runs an arbitrary short command in wxid's container,
// bounded by a fixed admin-grade timeout.
func (m *Manager) ExecCommand(ctx context.Context, wxid, shellCommand string, asRoot bool) (string, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return "", fmt.Errorf("container %s does not exist", name)
	}

	ctx, cancel := context.WithTimeout(ctx, execCommandTimeout)
	defer cancel()

	user := "sandbox"
	if asRoot {
		user = "root"
	}
	res, err := m.engine.Exec(ctx, info.ID, []string{"sh", "-c", shellCommand}, user)
	if err != nil {
		return "", err
	}
	return res.Stdout + res.Stderr, nil
}

// KillClaude sends SIGTERM to any Claude CLI processes inside wxid's
// container, for the admin /kill command and as the first step of the
// timeout escalation (5 s grace, then KillClaudeForce). The executor's
// own in-flight guard release is the caller's responsibility.
func (m *Manager) KillClaude(ctx context.Context, wxid string) error {
	return m.signalClaude(ctx, wxid, "-TERM")
}

// KillClaudeForce sends SIGKILL to any Claude CLI processes inside
// wxid's container, for a process that ignored KillClaude's SIGTERM
// grace period.
func (m *Manager) KillClaudeForce(ctx context.Context, wxid string) error {
	return m.signalClaude(ctx, wxid, "-KILL")
}

func (m *Manager) signalClaude(ctx context.Context, wxid, signal string) error {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return nil
	}
	return m.engine.ExecDetached(ctx, info.ID, []string{"pkill", signal, "claude"})
}
