package adapter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

const instanceLabel = "deployhub.instance"

// ComposeAdapter runs templates as plain containers on a single Docker
// daemon. The template's compose file describes the services; every container
// carries an instance label so later operations can find the instance's
// containers without extra bookkeeping.
type ComposeAdapter struct {
	cli     *client.Client
	network string
	logger  zerolog.Logger
}

func NewComposeAdapter(cfg *config.Config, logger zerolog.Logger) (*ComposeAdapter, error) {
	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
	}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	} else {
		opts = append(opts, client.FromEnv)
	}

	if cfg.DockerCACert != "" && cfg.DockerCert != "" && cfg.DockerKey != "" {
		caPEM, err := os.ReadFile(cfg.DockerCACert)
		if err != nil {
			return nil, fmt.Errorf("read docker ca cert: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(cfg.DockerCert, cfg.DockerKey)
		if err != nil {
			return nil, fmt.Errorf("load docker client cert: %w", err)
		}

		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caPEM)

		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					RootCAs:      caCertPool,
				},
			},
		}
		opts = append(opts, client.WithHTTPClient(httpClient))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &ComposeAdapter{
		cli:     cli,
		network: cfg.DockerNetwork,
		logger:  logger.With().Str("adapter", model.BackendCompose).Logger(),
	}, nil
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command"`
	Environment map[string]string `yaml:"environment"`
	Ports       []string          `yaml:"ports"`
	Volumes     []string          `yaml:"volumes"`
}

// loadComposeFile parses the template's compose file and expands the
// ${VERSION}, ${TENANT_ID} and ${ENVIRONMENT} placeholders it may use.
func (c *ComposeAdapter) loadComposeFile(ec *Context, version string) (*composeFile, error) {
	raw, err := os.ReadFile(ec.ComposeFilePath)
	if err != nil {
		return nil, fmt.Errorf("read compose file %s: %w", ec.ComposeFilePath, err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		switch key {
		case "VERSION":
			return version
		case "TENANT_ID":
			return ec.TenantID
		case "ENVIRONMENT":
			return ec.Environment
		default:
			return os.Getenv(key)
		}
	})

	var cf composeFile
	if err := yaml.Unmarshal([]byte(expanded), &cf); err != nil {
		return nil, fmt.Errorf("parse compose file %s: %w", ec.ComposeFilePath, err)
	}
	if len(cf.Services) == 0 {
		return nil, fmt.Errorf("compose file %s defines no services", ec.ComposeFilePath)
	}
	return &cf, nil
}

func (c *ComposeAdapter) listContainers(ctx context.Context, instanceID string) ([]container.Summary, error) {
	return c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", instanceLabel+"="+instanceID)),
	})
}

func (c *ComposeAdapter) removeContainers(ctx context.Context, instanceID string) (int, error) {
	containers, err := c.listContainers(ctx, instanceID)
	if err != nil {
		return 0, fmt.Errorf("list containers for %s: %w", instanceID, err)
	}
	for _, cnt := range containers {
		if err := c.cli.ContainerRemove(ctx, cnt.ID, container.RemoveOptions{Force: true}); err != nil {
			return 0, fmt.Errorf("remove container %s: %w", cnt.ID, err)
		}
	}
	return len(containers), nil
}

// deploy removes any existing containers for the instance, then creates and
// starts one container per compose service at the given version.
func (c *ComposeAdapter) deploy(ctx context.Context, ec *Context, version string) (*Result, error) {
	cf, err := c.loadComposeFile(ec, version)
	if err != nil {
		return failure(err.Error()), nil
	}

	if _, err := c.removeContainers(ctx, ec.InstanceID); err != nil {
		return nil, err
	}

	// Deterministic service order keeps container naming stable.
	names := make([]string, 0, len(cf.Services))
	for name := range cf.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	endpoints := map[string]string{}
	var created []string
	for _, name := range names {
		svc := cf.Services[name]

		reader, err := c.cli.ImagePull(ctx, svc.Image, image.PullOptions{})
		if err != nil {
			return failure(fmt.Sprintf("pull image %s: %v", svc.Image, err)), nil
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()

		env := make([]string, 0, len(svc.Environment)+len(ec.Secrets))
		for k, v := range svc.Environment {
			env = append(env, k+"="+v)
		}
		for k, v := range ec.Secrets {
			env = append(env, k+"="+v)
		}

		exposedPorts := nat.PortSet{}
		portBindings := nat.PortMap{}
		for _, p := range svc.Ports {
			hostPort, containerPort, ok := strings.Cut(p, ":")
			if !ok {
				containerPort = hostPort
				hostPort = ""
			}
			cp := nat.Port(containerPort + "/tcp")
			exposedPorts[cp] = struct{}{}
			portBindings[cp] = []nat.PortBinding{{HostPort: hostPort}}
		}

		cfg := &container.Config{
			Image:        svc.Image,
			Cmd:          svc.Command,
			Env:          env,
			ExposedPorts: exposedPorts,
			Labels: map[string]string{
				instanceLabel:        ec.InstanceID,
				"deployhub.tenant":   ec.TenantID,
				"deployhub.service":  name,
				"deployhub.template": ec.TemplateName,
			},
		}
		hostConfig := &container.HostConfig{
			PortBindings: portBindings,
			Binds:        svc.Volumes,
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
			Resources: container.Resources{
				Memory:   int64(ec.MemoryGB * 1024 * 1024 * 1024),
				NanoCPUs: int64(ec.CPUCores * 1e9),
			},
		}
		var networkConfig *network.NetworkingConfig
		if c.network != "" {
			networkConfig = &network.NetworkingConfig{
				EndpointsConfig: map[string]*network.EndpointSettings{
					c.network: {},
				},
			}
		}

		containerName := ec.ReleaseName() + "-" + name
		resp, err := c.cli.ContainerCreate(ctx, cfg, hostConfig, networkConfig, nil, containerName)
		if err != nil {
			return failure(fmt.Sprintf("create container %s: %v", containerName, err)), nil
		}
		created = append(created, resp.ID)

		if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			return failure(fmt.Sprintf("start container %s: %v", containerName, err)), nil
		}

		// Resolve ephemeral host ports for the instance's endpoint map.
		info, err := c.cli.ContainerInspect(ctx, resp.ID)
		if err == nil {
			for _, bindings := range info.NetworkSettings.Ports {
				if len(bindings) > 0 && bindings[0].HostPort != "" {
					endpoints[name] = "localhost:" + bindings[0].HostPort
					break
				}
			}
		}
	}

	res := success(fmt.Sprintf("deployed %d containers at version %s", len(created), version))
	res.BackendJobID = ec.InstanceID
	res.Endpoints = endpoints
	res.Metadata = map[string]any{"containers": created}
	return res, nil
}

func (c *ComposeAdapter) Provision(ctx context.Context, ec *Context) (*Result, error) {
	return c.deploy(ctx, ec, ec.ToVersion)
}

func (c *ComposeAdapter) Upgrade(ctx context.Context, ec *Context) (*Result, error) {
	return c.deploy(ctx, ec, ec.ToVersion)
}

func (c *ComposeAdapter) Rollback(ctx context.Context, ec *Context) (*Result, error) {
	return c.deploy(ctx, ec, ec.ToVersion)
}

// Scale updates resource limits on the running containers in place.
func (c *ComposeAdapter) Scale(ctx context.Context, ec *Context) (*Result, error) {
	containers, err := c.listContainers(ctx, ec.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("list containers for %s: %w", ec.InstanceID, err)
	}
	if len(containers) == 0 {
		return failure("no containers found for instance"), nil
	}

	for _, cnt := range containers {
		_, err := c.cli.ContainerUpdate(ctx, cnt.ID, container.UpdateConfig{
			Resources: container.Resources{
				Memory:   int64(ec.MemoryGB * 1024 * 1024 * 1024),
				NanoCPUs: int64(ec.CPUCores * 1e9),
			},
		})
		if err != nil {
			return failure(fmt.Sprintf("update container %s: %v", cnt.ID, err)), nil
		}
	}
	return success(fmt.Sprintf("updated resource limits on %d containers", len(containers))), nil
}

func (c *ComposeAdapter) Suspend(ctx context.Context, ec *Context) (*Result, error) {
	containers, err := c.listContainers(ctx, ec.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("list containers for %s: %w", ec.InstanceID, err)
	}
	for _, cnt := range containers {
		if err := c.cli.ContainerStop(ctx, cnt.ID, container.StopOptions{}); err != nil {
			return failure(fmt.Sprintf("stop container %s: %v", cnt.ID, err)), nil
		}
	}
	return success(fmt.Sprintf("stopped %d containers", len(containers))), nil
}

func (c *ComposeAdapter) Resume(ctx context.Context, ec *Context) (*Result, error) {
	containers, err := c.listContainers(ctx, ec.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("list containers for %s: %w", ec.InstanceID, err)
	}
	if len(containers) == 0 {
		return failure("no containers found for instance"), nil
	}
	for _, cnt := range containers {
		if err := c.cli.ContainerStart(ctx, cnt.ID, container.StartOptions{}); err != nil {
			return failure(fmt.Sprintf("start container %s: %v", cnt.ID, err)), nil
		}
	}
	return success(fmt.Sprintf("started %d containers", len(containers))), nil
}

func (c *ComposeAdapter) Destroy(ctx context.Context, ec *Context) (*Result, error) {
	removed, err := c.removeContainers(ctx, ec.InstanceID)
	if err != nil {
		return nil, err
	}
	return success(fmt.Sprintf("removed %d containers", removed)), nil
}

func (c *ComposeAdapter) HealthCheck(ctx context.Context, ec *Context) (*HealthResult, error) {
	start := time.Now()
	containers, err := c.listContainers(ctx, ec.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("list containers for %s: %w", ec.InstanceID, err)
	}
	elapsed := time.Since(start)

	if len(containers) == 0 {
		return &HealthResult{
			Status:       model.HealthUnhealthy,
			ResponseTime: elapsed,
			Message:      "no containers found for instance",
		}, nil
	}

	running := 0
	for _, cnt := range containers {
		info, err := c.cli.ContainerInspect(ctx, cnt.ID)
		if err != nil {
			continue
		}
		if info.State.Running {
			if info.State.Health != nil && info.State.Health.Status == "unhealthy" {
				continue
			}
			running++
		}
	}

	status := model.HealthHealthy
	switch {
	case running == 0:
		status = model.HealthUnhealthy
	case running < len(containers):
		status = model.HealthDegraded
	}

	return &HealthResult{
		Status:       status,
		ResponseTime: elapsed,
		Metrics: map[string]float64{
			"containers_total":   float64(len(containers)),
			"containers_running": float64(running),
		},
		Details: fmt.Sprintf("%d/%d containers running", running, len(containers)),
		Message: strconv.Itoa(running) + " containers running",
	}, nil
}

var _ Adapter = (*ComposeAdapter)(nil)
