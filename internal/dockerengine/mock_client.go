package dockerengine

import (
	"context"
	"fmt"
	"sync"
)

// MockEngine is an in-memory fake of Engine for package tests that must
// not require a live Docker daemon. No mocking framework — configurable
// function fields plus a protected map, matching the rest of the pack's
// hand-rolled test doubles.
type MockEngine struct {
	mu         sync.Mutex
	containers map[string]*mockContainer
	images     map[string]bool
	networks   map[string]bool

	PingErr           error
	CreateContainerFn func(ctx context.Context, spec CreateSpec) (string, error)
	ExecFn            func(ctx context.Context, id string, cmd []string, asUser string) (ExecResult, error)
	StatsFn           func(ctx context.Context, id string) (Stats, error)
}

type mockContainer struct {
	ID     string
	Name   string
	State  string
	Labels map[string]string
}

// NewMockEngine returns a MockEngine with no images present (BuildImage
// marks a tag present) and only the built-in bridge/none/host networks.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		containers: make(map[string]*mockContainer),
		images:     make(map[string]bool),
		networks:   map[string]bool{"bridge": true, "none": true, "host": true},
	}
}

var _ Engine = (*MockEngine)(nil)

func (m *MockEngine) Ping(ctx context.Context) error { return m.PingErr }
func (m *MockEngine) Close() error                   { return nil }

func (m *MockEngine) CreateContainer(ctx context.Context, spec CreateSpec) (string, error) {
	if m.CreateContainerFn != nil {
		return m.CreateContainerFn(ctx, spec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "mock-" + spec.Name
	m.containers[id] = &mockContainer{ID: id, Name: spec.Name, State: "created", Labels: spec.Labels}
	return id, nil
}

func (m *MockEngine) StartContainer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.State = "running"
		return nil
	}
	return notFound(id)
}

func (m *MockEngine) StopContainer(ctx context.Context, id string, graceSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.State = "exited"
		return nil
	}
	return notFound(id)
}

func (m *MockEngine) RemoveContainer(ctx context.Context, id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, id)
	return nil
}

func (m *MockEngine) InspectContainer(ctx context.Context, id string) (ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return ContainerInfo{}, notFound(id)
	}
	return ContainerInfo{ID: c.ID, Name: c.Name, State: c.State, Labels: c.Labels}, nil
}

func (m *MockEngine) ContainerByName(ctx context.Context, name string) (ContainerInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.containers {
		if c.Name == name {
			return ContainerInfo{ID: c.ID, Name: c.Name, State: c.State, Labels: c.Labels}, true, nil
		}
	}
	return ContainerInfo{}, false, nil
}

func (m *MockEngine) Exec(ctx context.Context, id string, cmd []string, asUser string) (ExecResult, error) {
	if m.ExecFn != nil {
		return m.ExecFn(ctx, id, cmd, asUser)
	}
	m.mu.Lock()
	_, ok := m.containers[id]
	m.mu.Unlock()
	if !ok {
		return ExecResult{}, notFound(id)
	}
	return ExecResult{Stdout: "mock output"}, nil
}

func (m *MockEngine) ExecDetached(ctx context.Context, id string, cmd []string) error {
	m.mu.Lock()
	_, ok := m.containers[id]
	m.mu.Unlock()
	if !ok {
		return notFound(id)
	}
	return nil
}

func (m *MockEngine) ListByLabel(ctx context.Context, key, value string) ([]ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ContainerInfo
	for _, c := range m.containers {
		if c.Labels[key] == value || (value == "" && c.Labels[key] != "") {
			out = append(out, ContainerInfo{ID: c.ID, Name: c.Name, State: c.State, Labels: c.Labels})
		}
	}
	return out, nil
}

func (m *MockEngine) StatsOneShot(ctx context.Context, id string) (Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx, id)
	}
	return Stats{CPUPercent: 0, MemUsage: 0, MemLimit: 0}, nil
}

func (m *MockEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.images[ref], nil
}

func (m *MockEngine) BuildImage(ctx context.Context, contextDir, dockerfile, tag string, out func(line string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[tag] = true
	return nil
}

func (m *MockEngine) NetworkExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.networks[name], nil
}

func (m *MockEngine) NetworkCreate(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networks[name] = true
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("container not found: %s", id)
}
