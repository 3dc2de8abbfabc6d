package sandbox

import (
	"context"
	"fmt"
	"time"
)

const ownerFixupRetryDelay = 2 * time.Second

// EnsureContainer creates the container for wxid if it doesn't exist,
// then starts it if it isn't running. Idempotent and safe to retry.
func (m *Manager) EnsureContainer(ctx context.Context, wxid string, tier Tier) (string, error) {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)

	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up container %s: %w", name, err)
	}

	if !found {
		spec, err := m.buildCreateSpec(wxid, tier)
		if err != nil {
			return "", fmt.Errorf("building container spec for %s: %w", wxid, err)
		}
		id, err := m.engine.CreateContainer(ctx, spec)
		if err != nil {
			return "", fmt.Errorf("creating container %s: %w", name, err)
		}
		if err := m.engine.StartContainer(ctx, id); err != nil {
			return "", fmt.Errorf("starting container %s: %w", name, err)
		}
		m.fixOwnership(ctx, id)
		return name, nil
	}

	if info.State != "running" {
		if err := m.engine.StartContainer(ctx, info.ID); err != nil {
			return "", fmt.Errorf("starting existing container %s: %w", name, err)
		}
	}
	return name, nil
}

// fixOwnership corrects host-created directories (owned by root) so
// the in-container "sandbox" user can write to its bind mounts. This
// can race the container's own startup, so failure is non-fatal and
// retried once after a short delay.
func (m *Manager) fixOwnership(ctx context.Context, containerID string) {
	cmd := []string{"chown", "-R", "sandbox:sandbox", "/home/sandbox/workspace", "/home/sandbox/.claude"}
	if _, err := m.engine.Exec(ctx, containerID, cmd, "root"); err == nil {
		return
	}
	time.Sleep(ownerFixupRetryDelay)
	_, _ = m.engine.Exec(ctx, containerID, cmd, "root")
}

// Start starts the container for wxid if it is not already running.
func (m *Manager) Start(ctx context.Context, wxid string) error {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return fmt.Errorf("container %s does not exist", name)
	}
	if info.State == "running" {
		return nil
	}
	return m.engine.StartContainer(ctx, info.ID)
}

// Stop gracefully stops the container for wxid, if present. Stopping a
// non-existent container is not an error.
func (m *Manager) Stop(ctx context.Context, wxid string) error {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return nil
	}
	return m.engine.StopContainer(ctx, info.ID, 10)
}

// Destroy force-removes the container for wxid. Workspace/claude-config
// data survives because they are host bind mounts, not volumes owned
// by the container. Destroying a non-existent container succeeds
// silently.
func (m *Manager) Destroy(ctx context.Context, wxid string) error {
	name := ContainerName(m.cfg.Docker.ContainerPrefix, wxid)
	info, found, err := m.engine.ContainerByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up container %s: %w", name, err)
	}
	if !found {
		return nil
	}
	return m.engine.RemoveContainer(ctx, info.ID, true)
}

// Rebuild destroys and recreates the container for wxid with its
// current permission tier's policy, discarding any container-local
// changes outside the bind-mounted workspace/claude-config.
func (m *Manager) Rebuild(ctx context.Context, wxid string, tier Tier) (string, error) {
	if err := m.Destroy(ctx, wxid); err != nil {
		return "", fmt.Errorf("destroying container for rebuild: %w", err)
	}
	return m.EnsureContainer(ctx, wxid, tier)
}
