package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

// TerraformAdapter shells out to the terraform binary. Each instance gets its
// own working directory under the configured root so state files never mix
// between tenants.
type TerraformAdapter struct {
	bin     string
	workdir string
	logger  zerolog.Logger
}

func NewTerraformAdapter(cfg *config.Config, logger zerolog.Logger) (*TerraformAdapter, error) {
	if cfg.TerraformWorkdir == "" {
		return nil, fmt.Errorf("TERRAFORM_WORKDIR is not configured")
	}
	return &TerraformAdapter{
		bin:     cfg.TerraformBin,
		workdir: cfg.TerraformWorkdir,
		logger:  logger.With().Str("adapter", model.BackendTerraform).Logger(),
	}, nil
}

func (t *TerraformAdapter) instanceDir(ec *Context) string {
	return filepath.Join(t.workdir, ec.InstanceID)
}

// writeVarsFile renders the instance's merged config and resources into
// terraform.tfvars.json in the instance directory.
func (t *TerraformAdapter) writeVarsFile(ec *Context, version string) (string, error) {
	dir := t.instanceDir(ec)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workdir %s: %w", dir, err)
	}

	vars := map[string]any{
		"tenant_id":   ec.TenantID,
		"instance_id": ec.InstanceID,
		"environment": ec.Environment,
		"region":      ec.Region,
		"version":     version,
		"cpu_cores":   ec.CPUCores,
		"memory_gb":   ec.MemoryGB,
		"storage_gb":  ec.StorageGB,
	}
	for k, v := range ec.Config {
		vars[k] = v
	}

	data, err := json.MarshalIndent(vars, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tfvars: %w", err)
	}

	path := filepath.Join(dir, "terraform.tfvars.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write tfvars %s: %w", path, err)
	}
	return dir, nil
}

// runCommand executes terraform with the given args. A non-zero exit is an
// expected backend failure, not a fault, so the combined output comes back
// either way.
func (t *TerraformAdapter) runCommand(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TF_IN_AUTOMATION=1")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	t.logger.Debug().Str("dir", dir).Strs("args", args).Msg("running terraform")
	err := cmd.Run()
	return out.String(), err
}

func (t *TerraformAdapter) apply(ctx context.Context, ec *Context, version string) (*Result, error) {
	dir, err := t.writeVarsFile(ec, version)
	if err != nil {
		return nil, err
	}

	initOut, err := t.runCommand(ctx, dir, "init", "-input=false", "-no-color",
		"-from-module="+ec.ModulePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Re-running init with -from-module fails once the directory is
		// populated; fall back to a plain init.
		initOut, err = t.runCommand(ctx, dir, "init", "-input=false", "-no-color")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return failure(fmt.Sprintf("terraform init: %v\n%s", err, initOut)), nil
		}
	}

	applyOut, err := t.runCommand(ctx, dir, "apply", "-input=false", "-auto-approve", "-no-color")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res := failure(fmt.Sprintf("terraform apply: %v", err))
		res.Logs = initOut + applyOut
		return res, nil
	}

	res := success(fmt.Sprintf("terraform apply complete at version %s", version))
	res.BackendJobID = ec.InstanceID
	res.Logs = initOut + applyOut
	res.Endpoints = t.readOutputs(ctx, dir)
	return res, nil
}

// readOutputs maps string-typed terraform outputs onto instance endpoints.
func (t *TerraformAdapter) readOutputs(ctx context.Context, dir string) map[string]string {
	out, err := t.runCommand(ctx, dir, "output", "-json", "-no-color")
	if err != nil {
		return nil
	}

	var raw map[string]struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil
	}

	endpoints := map[string]string{}
	for name, o := range raw {
		if s, ok := o.Value.(string); ok {
			endpoints[name] = s
		}
	}
	if len(endpoints) == 0 {
		return nil
	}
	return endpoints
}

func (t *TerraformAdapter) Provision(ctx context.Context, ec *Context) (*Result, error) {
	return t.apply(ctx, ec, ec.ToVersion)
}

func (t *TerraformAdapter) Upgrade(ctx context.Context, ec *Context) (*Result, error) {
	return t.apply(ctx, ec, ec.ToVersion)
}

func (t *TerraformAdapter) Scale(ctx context.Context, ec *Context) (*Result, error) {
	return t.apply(ctx, ec, ec.ToVersion)
}

func (t *TerraformAdapter) Rollback(ctx context.Context, ec *Context) (*Result, error) {
	return t.apply(ctx, ec, ec.ToVersion)
}

// Suspend re-applies with suspended=true so modules that support it can scale
// their workloads down while keeping stateful resources.
func (t *TerraformAdapter) Suspend(ctx context.Context, ec *Context) (*Result, error) {
	suspended := cloneContext(ec)
	suspended.Config["suspended"] = true
	return t.apply(ctx, suspended, ec.ToVersion)
}

func (t *TerraformAdapter) Resume(ctx context.Context, ec *Context) (*Result, error) {
	resumed := cloneContext(ec)
	resumed.Config["suspended"] = false
	return t.apply(ctx, resumed, ec.ToVersion)
}

func (t *TerraformAdapter) Destroy(ctx context.Context, ec *Context) (*Result, error) {
	dir := t.instanceDir(ec)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return success("no terraform state for instance, nothing to destroy"), nil
	}

	out, err := t.runCommand(ctx, dir, "destroy", "-input=false", "-auto-approve", "-no-color")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res := failure(fmt.Sprintf("terraform destroy: %v", err))
		res.Logs = out
		return res, nil
	}

	if err := os.RemoveAll(dir); err != nil {
		t.logger.Warn().Err(err).Str("dir", dir).Msg("failed to clean up terraform workdir")
	}

	res := success("terraform destroy complete")
	res.Logs = out
	return res, nil
}

// HealthCheck runs a refresh-only plan. Exit 0 means the live infrastructure
// matches the state, exit 2 means drift, anything else is unhealthy.
func (t *TerraformAdapter) HealthCheck(ctx context.Context, ec *Context) (*HealthResult, error) {
	dir := t.instanceDir(ec)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &HealthResult{
			Status:  model.HealthUnknown,
			Message: "no terraform state for instance",
		}, nil
	}

	start := time.Now()
	out, err := t.runCommand(ctx, dir, "plan", "-input=false", "-no-color",
		"-detailed-exitcode", "-refresh-only")
	elapsed := time.Since(start)

	status := model.HealthHealthy
	message := "infrastructure matches state"
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 2 {
			status = model.HealthDegraded
			message = "infrastructure has drifted from state"
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			status = model.HealthUnhealthy
			message = fmt.Sprintf("terraform plan: %v", err)
		}
	}

	return &HealthResult{
		Status:       status,
		ResponseTime: elapsed,
		Details:      out,
		Message:      message,
	}, nil
}

func cloneContext(ec *Context) *Context {
	clone := *ec
	clone.Config = make(map[string]any, len(ec.Config)+1)
	for k, v := range ec.Config {
		clone.Config[k] = v
	}
	return &clone
}

var _ Adapter = (*TerraformAdapter)(nil)
