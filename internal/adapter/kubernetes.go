package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

// HelmAdapter deploys templates as Helm releases. The template's chart URL
// and chart version locate the artifact; the instance's merged config becomes
// the release values.
//
// Helm reports deploy failures (failed hooks, unreachable charts, timed-out
// waits) through its action errors, so those are encoded as failure Results
// rather than returned as faults.
type HelmAdapter struct {
	cfg      *config.Config
	settings *cli.EnvSettings
	logger   zerolog.Logger
}

func NewHelmAdapter(cfg *config.Config, logger zerolog.Logger) (*HelmAdapter, error) {
	settings := cli.New()
	if cfg.Kubeconfig != "" {
		settings.KubeConfig = cfg.Kubeconfig
	}
	return &HelmAdapter{
		cfg:      cfg,
		settings: settings,
		logger:   logger.With().Str("adapter", model.BackendKubernetes).Logger(),
	}, nil
}

func (h *HelmAdapter) actionConfig(namespace string) (*action.Configuration, error) {
	ac := new(action.Configuration)
	logf := func(format string, v ...any) {
		h.logger.Debug().Msgf(format, v...)
	}
	if err := ac.Init(h.settings.RESTClientGetter(), namespace, h.cfg.HelmDriver, logf); err != nil {
		return nil, fmt.Errorf("init helm action config for namespace %s: %w", namespace, err)
	}
	return ac, nil
}

func (h *HelmAdapter) namespace(ec *Context) string {
	if ec.Namespace != "" {
		return ec.Namespace
	}
	return ec.ReleaseName()
}

func (h *HelmAdapter) loadChart(chartRef, version string) (*chart.Chart, error) {
	cpo := action.ChartPathOptions{Version: version}
	path, err := cpo.LocateChart(chartRef, h.settings)
	if err != nil {
		return nil, fmt.Errorf("locate chart %s: %w", chartRef, err)
	}
	ch, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load chart %s: %w", path, err)
	}
	return ch, nil
}

// values deep-copies the merged config so backend-specific additions never
// leak back into the instance record.
func (h *HelmAdapter) values(ec *Context, extra map[string]any) map[string]any {
	vals := make(map[string]any, len(ec.Config)+len(extra)+1)
	for k, v := range ec.Config {
		vals[k] = v
	}
	vals["resources"] = map[string]any{
		"cpuCores":  ec.CPUCores,
		"memoryGb":  ec.MemoryGB,
		"storageGb": ec.StorageGB,
	}
	for k, v := range extra {
		vals[k] = v
	}
	return vals
}

func releaseResult(rel *release.Release) *Result {
	res := success(fmt.Sprintf("release %s revision %d %s", rel.Name, rel.Version, rel.Info.Status))
	res.BackendJobID = rel.Name
	res.Logs = rel.Info.Notes
	res.Metadata = map[string]any{
		"revision":  rel.Version,
		"status":    string(rel.Info.Status),
		"namespace": rel.Namespace,
	}
	return res
}

func timeoutFrom(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return 15 * time.Minute
}

func (h *HelmAdapter) Provision(ctx context.Context, ec *Context) (*Result, error) {
	ns := h.namespace(ec)
	ac, err := h.actionConfig(ns)
	if err != nil {
		return nil, err
	}

	chartVersion := ec.ChartVersion
	if chartVersion == "" {
		chartVersion = ec.ToVersion
	}
	ch, err := h.loadChart(ec.ChartURL, chartVersion)
	if err != nil {
		return failure(err.Error()), nil
	}

	install := action.NewInstall(ac)
	install.ReleaseName = ec.ReleaseName()
	install.Namespace = ns
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = timeoutFrom(ctx)

	rel, err := install.RunWithContext(ctx, ch, h.values(ec, nil))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(fmt.Sprintf("helm install %s: %v", install.ReleaseName, err)), nil
	}
	return releaseResult(rel), nil
}

func (h *HelmAdapter) upgradeRelease(ctx context.Context, ec *Context, extra map[string]any) (*Result, error) {
	ns := h.namespace(ec)
	ac, err := h.actionConfig(ns)
	if err != nil {
		return nil, err
	}

	chartVersion := ec.ChartVersion
	if chartVersion == "" {
		chartVersion = ec.ToVersion
	}
	ch, err := h.loadChart(ec.ChartURL, chartVersion)
	if err != nil {
		return failure(err.Error()), nil
	}

	upgrade := action.NewUpgrade(ac)
	upgrade.Namespace = ns
	upgrade.Wait = true
	upgrade.MaxHistory = h.cfg.HelmMaxHistory
	upgrade.Timeout = timeoutFrom(ctx)

	rel, err := upgrade.RunWithContext(ctx, ec.ReleaseName(), ch, h.values(ec, extra))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(fmt.Sprintf("helm upgrade %s: %v", ec.ReleaseName(), err)), nil
	}
	return releaseResult(rel), nil
}

func (h *HelmAdapter) Upgrade(ctx context.Context, ec *Context) (*Result, error) {
	return h.upgradeRelease(ctx, ec, nil)
}

// Scale re-applies the release with the new resource values.
func (h *HelmAdapter) Scale(ctx context.Context, ec *Context) (*Result, error) {
	return h.upgradeRelease(ctx, ec, nil)
}

// Suspend scales the release's workloads to zero replicas. The release and
// its persistent volumes stay in place for resume.
func (h *HelmAdapter) Suspend(ctx context.Context, ec *Context) (*Result, error) {
	return h.upgradeRelease(ctx, ec, map[string]any{"replicaCount": 0})
}

func (h *HelmAdapter) Resume(ctx context.Context, ec *Context) (*Result, error) {
	return h.upgradeRelease(ctx, ec, nil)
}

func (h *HelmAdapter) Rollback(ctx context.Context, ec *Context) (*Result, error) {
	ac, err := h.actionConfig(h.namespace(ec))
	if err != nil {
		return nil, err
	}

	rollback := action.NewRollback(ac)
	rollback.Wait = true
	rollback.Timeout = timeoutFrom(ctx)

	if err := rollback.Run(ec.ReleaseName()); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(fmt.Sprintf("helm rollback %s: %v", ec.ReleaseName(), err)), nil
	}

	res := success(fmt.Sprintf("release %s rolled back to %s", ec.ReleaseName(), ec.ToVersion))
	res.BackendJobID = ec.ReleaseName()
	return res, nil
}

func (h *HelmAdapter) Destroy(ctx context.Context, ec *Context) (*Result, error) {
	ac, err := h.actionConfig(h.namespace(ec))
	if err != nil {
		return nil, err
	}

	uninstall := action.NewUninstall(ac)
	uninstall.Timeout = timeoutFrom(ctx)

	resp, err := uninstall.Run(ec.ReleaseName())
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			// Already gone counts as destroyed.
			return success(fmt.Sprintf("release %s not found, nothing to uninstall", ec.ReleaseName())), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failure(fmt.Sprintf("helm uninstall %s: %v", ec.ReleaseName(), err)), nil
	}

	res := success(fmt.Sprintf("release %s uninstalled", ec.ReleaseName()))
	if resp != nil && resp.Release != nil {
		res.BackendJobID = resp.Release.Name
	}
	return res, nil
}

func (h *HelmAdapter) HealthCheck(ctx context.Context, ec *Context) (*HealthResult, error) {
	ac, err := h.actionConfig(h.namespace(ec))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rel, err := action.NewStatus(ac).Run(ec.ReleaseName())
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return &HealthResult{
				Status:       model.HealthUnhealthy,
				ResponseTime: elapsed,
				Message:      fmt.Sprintf("release %s not found", ec.ReleaseName()),
			}, nil
		}
		return nil, fmt.Errorf("helm status %s: %w", ec.ReleaseName(), err)
	}

	status := model.HealthUnhealthy
	switch rel.Info.Status {
	case release.StatusDeployed:
		status = model.HealthHealthy
	case release.StatusPendingInstall, release.StatusPendingUpgrade, release.StatusPendingRollback:
		status = model.HealthDegraded
	}

	return &HealthResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      fmt.Sprintf("release status %s, revision %d", rel.Info.Status, rel.Version),
		Message:      rel.Info.Description,
	}, nil
}

var _ Adapter = (*HelmAdapter)(nil)
