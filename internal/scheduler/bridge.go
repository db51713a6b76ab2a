package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deployhub/internal/activity"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/platform"
	"github.com/edvin/deployhub/internal/workflow"
)

// TaskQueue is the Temporal task queue shared by the worker and every
// schedule action.
const TaskQueue = "deployhub-tasks"

var (
	ErrBadSchedule    = errors.New("exactly one of scheduled_at, cron_expression or interval_seconds must be set")
	ErrPastTime       = errors.New("scheduled_at must be in the future")
	ErrBadCron        = errors.New("invalid cron expression")
	ErrNotSchedulable = errors.New("operation cannot be scheduled")
)

var schedulableOps = map[string]bool{
	model.OpProvision:   true,
	model.OpUpgrade:     true,
	model.OpSuspend:     true,
	model.OpResume:      true,
	model.OpDestroy:     true,
	model.OpRollback:    true,
	model.OpHealthCheck: true,
}

// Schedules is the slice of Temporal's schedule client the bridge needs.
type Schedules interface {
	Create(ctx context.Context, options temporalclient.ScheduleOptions) (temporalclient.ScheduleHandle, error)
	GetHandle(ctx context.Context, scheduleID string) temporalclient.ScheduleHandle
	List(ctx context.Context, options temporalclient.ScheduleListOptions) (temporalclient.ScheduleListIterator, error)
}

// Bridge maps deferred and recurring operations onto Temporal schedules.
// Each schedule fires ScheduledOperationWorkflow; overlap policy skip plus
// the orchestrator's own conflict guard keep concurrent firings harmless.
type Bridge struct {
	schedules Schedules
	taskQueue string
	logger    zerolog.Logger
}

func NewBridge(schedules Schedules, logger zerolog.Logger) *Bridge {
	return &Bridge{
		schedules: schedules,
		taskQueue: TaskQueue,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

type CreateParams struct {
	InstanceID string
	Operation  string
	ToVersion  string
	Actor      string

	// Provision replaces InstanceID when the scheduled operation creates a
	// new instance.
	Provision *activity.ProvisionRequest

	// Exactly one of the following selects the firing policy.
	ScheduledAt     *time.Time
	CronExpression  string
	IntervalSeconds int
}

const (
	KindOneShot  = "one_shot"
	KindCron     = "cron"
	KindInterval = "interval"
)

// Descriptor is returned to the caller after a schedule is registered.
type Descriptor struct {
	ScheduleID string    `json:"schedule_id"`
	Kind       string    `json:"kind"`
	NextFire   time.Time `json:"next_fire"`
}

// Create registers a schedule and returns its descriptor. A scheduled_at
// time produces a true one-shot: the firing window is anchored at the target
// time and the schedule carries a single remaining action, so it can never
// fire again.
func (b *Bridge) Create(ctx context.Context, p CreateParams) (*Descriptor, error) {
	if !schedulableOps[p.Operation] {
		return nil, fmt.Errorf("%s: %w", p.Operation, ErrNotSchedulable)
	}
	if p.Operation == model.OpProvision && p.Provision == nil {
		return nil, fmt.Errorf("provision payload required: %w", ErrBadSchedule)
	}

	selectors := 0
	if p.ScheduledAt != nil {
		selectors++
	}
	if p.CronExpression != "" {
		selectors++
	}
	if p.IntervalSeconds != 0 {
		selectors++
	}
	if selectors != 1 {
		return nil, ErrBadSchedule
	}

	var (
		spec     temporalclient.ScheduleSpec
		opts     temporalclient.ScheduleOptions
		kind     string
		nextFire time.Time
	)
	switch {
	case p.ScheduledAt != nil:
		if !p.ScheduledAt.After(time.Now()) {
			return nil, ErrPastTime
		}
		spec.Intervals = []temporalclient.ScheduleIntervalSpec{{Every: time.Minute}}
		spec.StartAt = *p.ScheduledAt
		opts.RemainingActions = 1
		kind = KindOneShot
		nextFire = *p.ScheduledAt
	case p.CronExpression != "":
		sched, err := cron.ParseStandard(p.CronExpression)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p.CronExpression, ErrBadCron)
		}
		spec.CronExpressions = []string{p.CronExpression}
		kind = KindCron
		nextFire = sched.Next(time.Now())
	default:
		if p.IntervalSeconds < 0 {
			return nil, fmt.Errorf("interval_seconds must be positive: %w", ErrBadSchedule)
		}
		every := time.Duration(p.IntervalSeconds) * time.Second
		spec.Intervals = []temporalclient.ScheduleIntervalSpec{{Every: every}}
		kind = KindInterval
		nextFire = time.Now().Add(every)
	}

	target := p.InstanceID
	if p.Operation == model.OpProvision {
		target = p.Provision.TenantID
	}

	scheduleID := fmt.Sprintf("%s-%s-%s", p.Operation, target, platform.NewName("sched"))
	opts.ID = scheduleID
	opts.Spec = spec
	opts.Overlap = enumspb.SCHEDULE_OVERLAP_POLICY_SKIP
	opts.Action = &temporalclient.ScheduleWorkflowAction{
		ID:        scheduleID,
		Workflow:  workflow.ScheduledOperationWorkflow,
		Args: []interface{}{workflow.ScheduledOperationParams{
			InstanceID: p.InstanceID,
			Operation:  p.Operation,
			ToVersion:  p.ToVersion,
			Actor:      p.Actor,
			Provision:  p.Provision,
		}},
		TaskQueue: b.taskQueue,
	}

	handle, err := b.schedules.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create schedule for instance %s: %w", p.InstanceID, err)
	}

	b.logger.Info().
		Str("schedule_id", handle.GetID()).
		Str("target", target).
		Str("operation", p.Operation).
		Str("kind", kind).
		Msg("schedule created")
	return &Descriptor{ScheduleID: handle.GetID(), Kind: kind, NextFire: nextFire}, nil
}

func (b *Bridge) Delete(ctx context.Context, scheduleID string) error {
	if err := b.schedules.GetHandle(ctx, scheduleID).Delete(ctx); err != nil {
		return fmt.Errorf("delete schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (b *Bridge) Pause(ctx context.Context, scheduleID, note string) error {
	err := b.schedules.GetHandle(ctx, scheduleID).Pause(ctx, temporalclient.SchedulePauseOptions{Note: note})
	if err != nil {
		return fmt.Errorf("pause schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (b *Bridge) Unpause(ctx context.Context, scheduleID, note string) error {
	err := b.schedules.GetHandle(ctx, scheduleID).Unpause(ctx, temporalclient.ScheduleUnpauseOptions{Note: note})
	if err != nil {
		return fmt.Errorf("unpause schedule %s: %w", scheduleID, err)
	}
	return nil
}

// Summary describes a registered schedule.
type Summary struct {
	ID            string      `json:"id"`
	Paused        bool        `json:"paused"`
	Note          string      `json:"note,omitempty"`
	WorkflowType  string      `json:"workflow_type"`
	NextFireTimes []time.Time `json:"next_fire_times,omitempty"`
}

// List returns all registered schedules.
func (b *Bridge) List(ctx context.Context) ([]Summary, error) {
	iter, err := b.schedules.List(ctx, temporalclient.ScheduleListOptions{PageSize: 100})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	var out []Summary
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate schedules: %w", err)
		}
		out = append(out, Summary{
			ID:            entry.ID,
			Paused:        entry.Paused,
			Note:          entry.Note,
			WorkflowType:  entry.WorkflowType.Name,
			NextFireTimes: entry.NextActionTimes,
		})
	}
	return out, nil
}
