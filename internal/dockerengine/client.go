package dockerengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
)

// Client wraps the Docker SDK client with the operations this system needs.
type Client struct {
	cli *dockerclient.Client
}

// NewClient creates a Docker client using environment defaults
// (DOCKER_HOST, DOCKER_CERT_PATH, ...), negotiating the API version with
// whatever daemon it finds.
func NewClient() (*Client, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

var _ Engine = (*Client)(nil)

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	return err
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) CreateContainer(ctx context.Context, spec CreateSpec) (string, error) {
	var mounts []mount.Mount
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	if spec.TmpSize != "" {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeTmpfs,
			Target: "/tmp",
			TmpfsOptions: &mount.TmpfsOptions{
				SizeBytes: parseSizeOrZero(spec.TmpSize),
			},
		})
	}

	var capDrop []string
	if spec.CapDropAll {
		capDrop = []string{"ALL"}
	}
	var secOpt []string
	if spec.NoNewPrivs {
		secOpt = append(secOpt, "no-new-privileges")
	}

	restart := container.RestartPolicy{}
	switch spec.RestartPolicy {
	case "unless-stopped":
		restart = container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}
	case "always":
		restart = container.RestartPolicy{Name: container.RestartPolicyAlways}
	}

	containerCfg := &container.Config{
		Image:  spec.Image,
		Cmd:    spec.Cmd,
		Env:    spec.Env,
		Labels: spec.Labels,
		User:   spec.User,
	}

	hostCfg := &container.HostConfig{
		Mounts:         mounts,
		ReadonlyRootfs: spec.ReadOnly,
		CapDrop:        capDrop,
		SecurityOpt:    secOpt,
		RestartPolicy:  restart,
		Resources: container.Resources{
			Memory:    spec.Memory,
			NanoCPUs:  spec.NanoCPUs,
			PidsLimit: nonZeroPtr(spec.PidsLimit),
		},
	}
	if spec.NetworkName != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.NetworkName)
	}

	var netCfg *network.NetworkingConfig
	resp, err := c.cli.ContainerCreate(ctx, containerCfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func nonZeroPtr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func parseSizeOrZero(s string) int64 {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	return c.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (c *Client) StopContainer(ctx context.Context, id string, graceSeconds int) error {
	return c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &graceSeconds})
}

func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	return c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
}

func (c *Client) InspectContainer(ctx context.Context, id string) (ContainerInfo, error) {
	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{
		ID:     info.ID,
		Name:   strings.TrimPrefix(info.Name, "/"),
		State:  info.State.Status,
		Labels: info.Config.Labels,
	}, nil
}

func (c *Client) ContainerByName(ctx context.Context, name string) (ContainerInfo, bool, error) {
	f := filters.NewArgs()
	f.Add("name", "^/"+name+"$")
	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return ContainerInfo{}, false, err
	}
	for _, item := range list {
		if len(item.Names) > 0 && strings.TrimPrefix(item.Names[0], "/") == name {
			return ContainerInfo{ID: item.ID, Name: name, State: item.State, Labels: item.Labels}, true, nil
		}
	}
	return ContainerInfo{}, false, nil
}

func (c *Client) Exec(ctx context.Context, id string, cmd []string, asUser string) (ExecResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		User:         asUser,
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := c.cli.ContainerExecCreate(ctx, id, execCfg)
	if err != nil {
		return ExecResult{}, err
	}

	resp, err := c.cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, err
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil && err != io.EOF {
		return ExecResult{}, err
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}, err
	}

	return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: inspect.ExitCode}, nil
}

func (c *Client) ExecDetached(ctx context.Context, id string, cmd []string) error {
	execCfg := container.ExecOptions{Cmd: cmd, AttachStdout: true, AttachStderr: true}
	execID, err := c.cli.ContainerExecCreate(ctx, id, execCfg)
	if err != nil {
		return err
	}
	return c.cli.ContainerExecStart(ctx, execID.ID, container.ExecStartOptions{})
}

func (c *Client) ListByLabel(ctx context.Context, key, value string) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	if value != "" {
		f.Add("label", fmt.Sprintf("%s=%s", key, value))
	} else {
		f.Add("label", key)
	}
	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, err
	}
	var out []ContainerInfo
	for _, item := range list {
		name := ""
		if len(item.Names) > 0 {
			name = strings.TrimPrefix(item.Names[0], "/")
		}
		out = append(out, ContainerInfo{ID: item.ID, Name: name, State: item.State, Labels: item.Labels})
	}
	return out, nil
}

func (c *Client) StatsOneShot(ctx context.Context, id string) (Stats, error) {
	resp, err := c.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	defer resp.Body.Close()

	var raw containerStatsJSON
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return Stats{}, err
	}

	return Stats{
		CPUPercent: calculateCPUPercent(raw),
		MemUsage:   raw.MemoryStats.Usage,
		MemLimit:   raw.MemoryStats.Limit,
		MemPercent: memPercent(raw),
		PIDs:       raw.PidsStats.Current,
	}, nil
}

func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, ref)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) BuildImage(ctx context.Context, contextDir, dockerfile, tag string, out func(line string)) error {
	buildCtx, err := archiveDir(contextDir)
	if err != nil {
		return err
	}
	defer buildCtx.Close()

	resp, err := c.cli.ImageBuild(ctx, buildCtx, buildOptions(dockerfile, tag))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return streamBuildOutput(resp.Body, out)
}

func buildOptions(dockerfile, tag string) image.BuildOptions {
	return image.BuildOptions{
		Dockerfile: dockerfile,
		Tags:       []string{tag},
		Remove:     true,
	}
}

func (c *Client) NetworkExists(ctx context.Context, name string) (bool, error) {
	_, err := c.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) NetworkCreate(ctx context.Context, name string) error {
	if name == "" || name == "bridge" || name == "none" || name == "host" {
		return nil
	}
	_, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	return err
}
