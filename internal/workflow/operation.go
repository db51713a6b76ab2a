package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/deployhub/internal/activity"
)

type ScheduledOperationParams struct {
	InstanceID string
	Operation  string
	ToVersion  string
	Actor      string
	Provision  *activity.ProvisionRequest
}

// ScheduledOperationWorkflow runs one scheduled lifecycle operation.
// MaximumAttempts is 1: lifecycle operations mutate backend state, so a
// failed attempt must surface as a failed execution instead of being
// silently re-run.
func ScheduledOperationWorkflow(ctx workflow.Context, p ScheduledOperationParams) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("running scheduled operation",
		"instance_id", p.InstanceID, "operation", p.Operation)

	var outcome activity.OperationOutcome
	err := workflow.ExecuteActivity(ctx, "RunScheduledOperation", activity.RunOperationParams{
		InstanceID: p.InstanceID,
		Operation:  p.Operation,
		ToVersion:  p.ToVersion,
		Actor:      p.Actor,
		Provision:  p.Provision,
	}).Get(ctx, &outcome)
	if err != nil {
		return err
	}

	if !outcome.Succeeded {
		return fmt.Errorf("scheduled %s on instance %s finished %s (execution %s)",
			p.Operation, p.InstanceID, outcome.Result, outcome.ExecutionID)
	}
	return nil
}

// HealthSweepWorkflow runs one health monitoring pass. Registered as a cron
// schedule by the worker.
func HealthSweepWorkflow(ctx workflow.Context) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var res struct {
		Checked   int
		Unhealthy int
		Errors    int
		Pruned    int64
	}
	if err := workflow.ExecuteActivity(ctx, "SweepHealth").Get(ctx, &res); err != nil {
		return err
	}

	workflow.GetLogger(ctx).Info("health sweep finished",
		"checked", res.Checked, "unhealthy", res.Unhealthy, "errors", res.Errors)
	return nil
}
