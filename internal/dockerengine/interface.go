// Package dockerengine is a thin typed wrapper over the Docker HTTP API.
// It knows nothing about sandboxes, users, or permission tiers — that
// policy lives in internal/sandbox. This package only knows how to talk
// to a container engine.
package dockerengine

import "context"

// CreateSpec is everything needed to create one container. The caller
// (internal/sandbox) is responsible for turning permission-tier policy
// into a concrete CreateSpec.
type CreateSpec struct {
	Name       string
	Image      string
	Cmd        []string
	Env        []string
	Labels     map[string]string
	Mounts     []BindMount
	Memory     int64 // bytes, 0 = unlimited
	NanoCPUs   int64 // CPU-nanosecond quota, 0 = unlimited
	PidsLimit  int64 // 0 = unlimited
	TmpSize    string
	ReadOnly   bool
	CapDropAll bool
	NoNewPrivs bool
	NetworkName string
	RestartPolicy string // "unless-stopped", "no", ...
	User       string
}

// BindMount is a host-path-to-container-path bind mount.
type BindMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerInfo is the subset of Docker's container-list shape this
// system cares about.
type ContainerInfo struct {
	ID     string
	Name   string
	State  string // running, exited, paused, created, ...
	Labels map[string]string
}

// ExecResult is the captured output of a one-shot exec.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Stats is a single-shot resource sample.
type Stats struct {
	CPUPercent float64
	MemUsage   uint64
	MemLimit   uint64
	MemPercent float64
	PIDs       uint64
}

// Engine is the interface the rest of the system programs against. The
// real implementation wraps github.com/docker/docker/client; tests use
// a hand-rolled in-memory fake (see mock_client.go) — no mocking framework.
type Engine interface {
	Ping(ctx context.Context) error
	Close() error

	CreateContainer(ctx context.Context, spec CreateSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, graceSeconds int) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	InspectContainer(ctx context.Context, id string) (ContainerInfo, error)
	ContainerByName(ctx context.Context, name string) (ContainerInfo, bool, error)

	Exec(ctx context.Context, id string, cmd []string, asUser string) (ExecResult, error)
	ExecDetached(ctx context.Context, id string, cmd []string) error

	ListByLabel(ctx context.Context, key, value string) ([]ContainerInfo, error)
	StatsOneShot(ctx context.Context, id string) (Stats, error)

	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, contextDir, dockerfile, tag string, out func(line string)) error

	NetworkExists(ctx context.Context, name string) (bool, error)
	NetworkCreate(ctx context.Context, name string) error
}
