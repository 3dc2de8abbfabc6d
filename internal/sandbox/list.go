package sandbox

import (
	"context"
	"fmt"
)

// ContainerSummary is one row of list_containers().
type ContainerSummary struct {
	Name       string
	Status     string
	Wxid       string
	Permission string
}

// ListContainers returns every container carrying this system's app
// label, regardless of which wxid or tier it belongs to.
func (m *Manager) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	list, err := m.engine.ListByLabel(ctx, appLabel, appValue)
	if err != nil {
		return nil, fmt.Errorf("listing app-labeled containers: %w", err)
	}
	out := make([]ContainerSummary, 0, len(list))
	for _, c := range list {
		out = append(out, ContainerSummary{
			Name:       c.Name,
			Status:     c.State,
			Wxid:       c.Labels["wxid"],
			Permission: c.Labels["permission"],
		})
	}
	return out, nil
}

// StopAll stops every app-labeled container, best-effort: one failure
// does not prevent the rest from being attempted.
func (m *Manager) StopAll(ctx context.Context) (int, error) {
	list, err := m.engine.ListByLabel(ctx, appLabel, appValue)
	if err != nil {
		return 0, fmt.Errorf("listing app-labeled containers: %w", err)
	}
	stopped := 0
	for _, c := range list {
		if c.State != "running" {
			continue
		}
		if err := m.engine.StopContainer(ctx, c.ID, 10); err == nil {
			stopped++
		}
	}
	return stopped, nil
}

// Cleanup removes every stopped app-labeled container. Running
// containers are left alone; use StopAll first to include them.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	list, err := m.engine.ListByLabel(ctx, appLabel, appValue)
	if err != nil {
		return 0, fmt.Errorf("listing app-labeled containers: %w", err)
	}
	pruned := 0
	for _, c := range list {
		if c.State == "running" {
			continue
		}
		if err := m.engine.RemoveContainer(ctx, c.ID, true); err == nil {
			pruned++
		}
	}
	return pruned, nil
}

// InitNetworks idempotently creates the tiered bridge networks named in
// configuration, skipping Docker's built-in "bridge"/"none"/"host".
func (m *Manager) InitNetworks(ctx context.Context) error {
	for _, name := range []string{m.cfg.Docker.Network.Admin, m.cfg.Docker.Network.Trusted, m.cfg.Docker.Network.Normal} {
		if name == "" {
			continue
		}
		exists, err := m.engine.NetworkExists(ctx, name)
		if err != nil {
			return fmt.Errorf("checking network %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := m.engine.NetworkCreate(ctx, name); err != nil {
			return fmt.Errorf("creating network %s: %w", name, err)
		}
	}
	return nil
}

// HealthCheck verifies the Docker engine is reachable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.engine.Ping(ctx); err != nil {
		return fmt.Errorf("docker engine unreachable: %w", err)
	}
	return nil
}

// ImageExists reports whether the configured sandbox image is present.
func (m *Manager) ImageExists(ctx context.Context) (bool, error) {
	return m.engine.ImageExists(ctx, m.cfg.Docker.Image)
}

// BuildImage builds the configured sandbox image from a local build
// context directory, streaming build log lines to out.
func (m *Manager) BuildImage(ctx context.Context, contextDir, dockerfile string, out func(line string)) error {
	return m.engine.BuildImage(ctx, contextDir, dockerfile, m.cfg.Docker.Image, out)
}
