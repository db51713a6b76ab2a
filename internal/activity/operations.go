package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/orchestrator"
)

// Operations exposes orchestrator operations as Temporal activities. The
// orchestrator's own guards (state checks, the per-instance lock, the
// running-execution row) protect against a scheduled operation colliding
// with a manual one.
type Operations struct {
	orchestrator *orchestrator.Service
	monitor      *orchestrator.Monitor
}

func NewOperations(svc *orchestrator.Service, mon *orchestrator.Monitor) *Operations {
	return &Operations{orchestrator: svc, monitor: mon}
}

type RunOperationParams struct {
	InstanceID string
	Operation  string
	ToVersion  string
	Actor      string

	// Provision targets a new instance instead of an existing one.
	Provision *ProvisionRequest
}

// ProvisionRequest is the deferred-provision payload carried inside a
// schedule. It mirrors the orchestrator's provision parameters minus actor
// and trigger, which the firing workflow supplies.
type ProvisionRequest struct {
	TenantID    string
	TemplateID  string
	Environment string
	Region      string
	Config      json.RawMessage
	CPUCores    float64
	MemoryGB    int
	StorageGB   int
	Tags        []string
}

type OperationOutcome struct {
	ExecutionID string
	State       string
	Result      string
	Succeeded   bool
}

// RunScheduledOperation performs one lifecycle operation on behalf of a
// schedule. Rejections (invalid state, conflicts) come back as activity
// errors; completed-but-failed operations come back as an unsuccessful
// outcome with the execution recorded in the registry.
func (o *Operations) RunScheduledOperation(ctx context.Context, p RunOperationParams) (*OperationOutcome, error) {
	if p.Operation == model.OpHealthCheck {
		rec, err := o.monitor.Check(ctx, p.InstanceID)
		if err != nil {
			return nil, err
		}
		return &OperationOutcome{
			State:     rec.Status,
			Result:    rec.Status,
			Succeeded: rec.Status != model.HealthUnhealthy,
		}, nil
	}

	var (
		exec *model.Execution
		err  error
	)
	switch p.Operation {
	case model.OpProvision:
		if p.Provision == nil {
			return nil, fmt.Errorf("scheduled provision is missing its payload")
		}
		_, exec, err = o.orchestrator.Provision(ctx, orchestrator.ProvisionParams{
			TenantID:    p.Provision.TenantID,
			TemplateID:  p.Provision.TemplateID,
			Environment: p.Provision.Environment,
			Region:      p.Provision.Region,
			Config:      p.Provision.Config,
			CPUCores:    p.Provision.CPUCores,
			MemoryGB:    p.Provision.MemoryGB,
			StorageGB:   p.Provision.StorageGB,
			Tags:        p.Provision.Tags,
			Actor:       p.Actor,
			Trigger:     model.TriggerAutomated,
		})
	case model.OpUpgrade:
		exec, err = o.orchestrator.Upgrade(ctx, orchestrator.UpgradeParams{
			InstanceID:        p.InstanceID,
			ToVersion:         p.ToVersion,
			RollbackOnFailure: true,
			Actor:             p.Actor,
			Trigger:           model.TriggerAutomated,
		})
	case model.OpSuspend:
		exec, err = o.orchestrator.Suspend(ctx, lifecycleParams(p))
	case model.OpResume:
		exec, err = o.orchestrator.Resume(ctx, lifecycleParams(p))
	case model.OpDestroy:
		exec, err = o.orchestrator.Destroy(ctx, lifecycleParams(p))
	case model.OpRollback:
		exec, err = o.orchestrator.Rollback(ctx, orchestrator.RollbackParams{
			InstanceID: p.InstanceID,
			Actor:      p.Actor,
			Trigger:    model.TriggerAutomated,
		})
	default:
		return nil, fmt.Errorf("operation %s cannot be scheduled", p.Operation)
	}
	if err != nil {
		return nil, err
	}

	outcome := &OperationOutcome{
		ExecutionID: exec.ID,
		State:       exec.State,
		Succeeded:   exec.State == model.ExecutionSucceeded,
	}
	if exec.Result != nil {
		outcome.Result = *exec.Result
	}
	return outcome, nil
}

func lifecycleParams(p RunOperationParams) orchestrator.LifecycleParams {
	return orchestrator.LifecycleParams{
		InstanceID: p.InstanceID,
		Reason:     "scheduled " + p.Operation,
		BackupData: true,
		Actor:      p.Actor,
		Trigger:    model.TriggerAutomated,
	}
}

// SweepHealth runs one monitoring pass over all active and degraded
// instances.
func (o *Operations) SweepHealth(ctx context.Context) (*orchestrator.SweepResult, error) {
	return o.monitor.Sweep(ctx)
}
