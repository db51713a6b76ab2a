package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deployhub/internal/adapter"
	"github.com/edvin/deployhub/internal/metrics"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/platform"
	"github.com/edvin/deployhub/internal/registry"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateInactive  = errors.New("template is not active")
	ErrInstanceNotFound  = errors.New("instance not found")
	ErrDuplicateInstance = errors.New("tenant already has an instance in this environment")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrConflict          = errors.New("another operation is already running for this instance")
	ErrNoRollbackTarget  = errors.New("no successful execution to roll back to")
)

type TemplateStore interface {
	GetByID(ctx context.Context, id string) (*model.Template, error)
}

type InstanceStore interface {
	Create(ctx context.Context, inst *model.Instance) error
	GetByID(ctx context.Context, id string) (*model.Instance, error)
	GetByTenantEnv(ctx context.Context, tenantID, environment string) (*model.Instance, error)
	UpdateState(ctx context.Context, id, state string, reason *string) error
	UpdateDeployment(ctx context.Context, id, version string, endpoints map[string]string, backendID *string) error
	UpdateConfig(ctx context.Context, id string, config json.RawMessage) error
	UpdateResources(ctx context.Context, id string, cpuCores float64, memoryGB, storageGB int) error
}

type ExecutionStore interface {
	Create(ctx context.Context, exec *model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	Finish(ctx context.Context, id string, p registry.FinishParams) error
	RunningByInstance(ctx context.Context, instanceID string) (*model.Execution, error)
	LastSuccessfulAtVersion(ctx context.Context, instanceID, version string) (*model.Execution, error)
	ListByInstance(ctx context.Context, instanceID string, limit int, cursor string) ([]model.Execution, bool, error)
}

type AdapterFactory interface {
	Get(kind string) (adapter.Adapter, error)
}

// Service drives instance lifecycle operations. Every mutating operation
// follows the same path: validate the requested transition, claim the
// instance, record a running execution, set the transient state, invoke the
// backend with the operation timeout, then settle execution and state from
// the outcome.
type Service struct {
	templates  TemplateStore
	instances  InstanceStore
	executions ExecutionStore
	adapters   AdapterFactory
	locks      *instanceLocks

	defaultTimeout time.Duration
	logger         zerolog.Logger
}

func NewService(
	templates TemplateStore,
	instances InstanceStore,
	executions ExecutionStore,
	adapters AdapterFactory,
	defaultTimeout time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		templates:      templates,
		instances:      instances,
		executions:     executions,
		adapters:       adapters,
		locks:          newInstanceLocks(),
		defaultTimeout: defaultTimeout,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

type ProvisionParams struct {
	TenantID    string
	TemplateID  string
	Environment string
	Region      string

	Config    json.RawMessage
	CPUCores  float64
	MemoryGB  int
	StorageGB int

	Tags       []string
	Actor      string
	ApprovedBy *string
	Trigger    string
}

// Provision creates a new instance in pending and immediately runs the
// provision operation against it. The instance row survives a failed
// provision so the failure is inspectable and the slot stays claimed.
func (s *Service) Provision(ctx context.Context, p ProvisionParams) (*model.Instance, *model.Execution, error) {
	tpl, err := s.templates.GetByID(ctx, p.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if tpl == nil {
		return nil, nil, ErrTemplateNotFound
	}
	if !tpl.Active {
		return nil, nil, ErrTemplateInactive
	}

	existing, err := s.instances.GetByTenantEnv(ctx, p.TenantID, p.Environment)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("instance %s exists: %w", existing.ID, ErrDuplicateInstance)
	}

	merged, err := mergeConfig(tpl.DefaultConfig, p.Config)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	inst := &model.Instance{
		ID:              platform.NewID(),
		TenantID:        p.TenantID,
		TemplateID:      tpl.ID,
		Environment:     p.Environment,
		Region:          p.Region,
		State:           model.StatePending,
		LastStateChange: now,
		Config:          merged,
		CPUCores:        maxFloat(p.CPUCores, tpl.MinCPUCores),
		MemoryGB:        maxInt(p.MemoryGB, tpl.MinMemoryGB),
		StorageGB:       maxInt(p.StorageGB, tpl.MinStorageGB),
		HealthStatus:    model.HealthUnknown,
		Tags:            p.Tags,
		DeployedBy:      p.Actor,
		ApprovedBy:      p.ApprovedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.instances.Create(ctx, inst); err != nil {
		return nil, nil, err
	}

	exec, err := s.execute(ctx, inst, tpl, opRequest{
		op:             model.OpProvision,
		toVersion:      tpl.Version,
		actor:          p.Actor,
		trigger:        p.Trigger,
		configSnapshot: merged,
	})
	return inst, exec, err
}

type UpgradeParams struct {
	InstanceID string
	ToVersion  string

	// ConfigUpdates is overlaid on the instance's current config and becomes
	// the effective config if the upgrade succeeds.
	ConfigUpdates json.RawMessage

	// RollbackOnFailure redeploys the last good version automatically when
	// the backend reports a failed upgrade.
	RollbackOnFailure bool

	Actor   string
	Trigger string
}

func (s *Service) Upgrade(ctx context.Context, p UpgradeParams) (*model.Execution, error) {
	inst, tpl, err := s.load(ctx, p.InstanceID)
	if err != nil {
		return nil, err
	}

	var merged json.RawMessage
	if len(p.ConfigUpdates) > 0 {
		merged, err = mergeConfig(inst.Config, p.ConfigUpdates)
		if err != nil {
			return nil, err
		}
	}

	return s.execute(ctx, inst, tpl, opRequest{
		op:                model.OpUpgrade,
		toVersion:         p.ToVersion,
		actor:             p.Actor,
		trigger:           p.Trigger,
		configSnapshot:    merged,
		newConfig:         merged,
		rollbackOnFailure: p.RollbackOnFailure,
	})
}

type ScaleParams struct {
	InstanceID string
	CPUCores   float64
	MemoryGB   int
	StorageGB  int
	Actor      string
	Trigger    string
}

// Scale adjusts the instance's resource allocation without moving it through
// a transient state. Allocations never drop below the template minimums.
func (s *Service) Scale(ctx context.Context, p ScaleParams) (*model.Execution, error) {
	inst, tpl, err := s.load(ctx, p.InstanceID)
	if err != nil {
		return nil, err
	}

	target := &scaleTarget{
		cpuCores:  maxFloat(p.CPUCores, tpl.MinCPUCores),
		memoryGB:  maxInt(p.MemoryGB, tpl.MinMemoryGB),
		storageGB: maxInt(p.StorageGB, tpl.MinStorageGB),
	}
	snapshot, _ := json.Marshal(map[string]any{
		"cpu_cores":  target.cpuCores,
		"memory_gb":  target.memoryGB,
		"storage_gb": target.storageGB,
	})

	return s.execute(ctx, inst, tpl, opRequest{
		op:             model.OpScale,
		toVersion:      inst.Version,
		actor:          p.Actor,
		trigger:        p.Trigger,
		configSnapshot: snapshot,
		scale:          target,
	})
}

type LifecycleParams struct {
	InstanceID string

	// Reason is recorded on the state change and passed to the backend.
	Reason string

	// BackupData asks the backend to snapshot data before a destroy. Ignored
	// by suspend and resume.
	BackupData bool

	Actor   string
	Trigger string
}

func (s *Service) Suspend(ctx context.Context, p LifecycleParams) (*model.Execution, error) {
	return s.simpleOp(ctx, model.OpSuspend, p)
}

func (s *Service) Resume(ctx context.Context, p LifecycleParams) (*model.Execution, error) {
	return s.simpleOp(ctx, model.OpResume, p)
}

func (s *Service) Destroy(ctx context.Context, p LifecycleParams) (*model.Execution, error) {
	return s.simpleOp(ctx, model.OpDestroy, p)
}

func (s *Service) simpleOp(ctx context.Context, op string, p LifecycleParams) (*model.Execution, error) {
	inst, tpl, err := s.load(ctx, p.InstanceID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, inst, tpl, opRequest{
		op:         op,
		toVersion:  inst.Version,
		actor:      p.Actor,
		trigger:    p.Trigger,
		reason:     p.Reason,
		backupData: p.BackupData,
	})
}

type RollbackParams struct {
	InstanceID string

	// ExecutionID names the failed execution to reverse. When empty the
	// instance's most recent failed execution is used.
	ExecutionID string

	Actor   string
	Trigger string
}

// Rollback reverses a failed upgrade by redeploying the last version that
// completed successfully. The target is the most recent succeeded execution
// whose to_version matches the failed execution's from_version.
func (s *Service) Rollback(ctx context.Context, p RollbackParams) (*model.Execution, error) {
	inst, tpl, err := s.load(ctx, p.InstanceID)
	if err != nil {
		return nil, err
	}

	failed, err := s.rollbackSubject(ctx, inst, p.ExecutionID)
	if err != nil {
		return nil, err
	}
	if failed.FromVersion == nil || *failed.FromVersion == "" {
		return nil, fmt.Errorf("execution %s has no from_version: %w", failed.ID, ErrNoRollbackTarget)
	}

	target, err := s.executions.LastSuccessfulAtVersion(ctx, inst.ID, *failed.FromVersion)
	if err != nil {
		return nil, err
	}
	if target == nil || target.ToVersion == nil {
		return nil, fmt.Errorf("no succeeded execution at version %s: %w", *failed.FromVersion, ErrNoRollbackTarget)
	}

	return s.execute(ctx, inst, tpl, opRequest{
		op:           model.OpRollback,
		toVersion:    *target.ToVersion,
		actor:        p.Actor,
		trigger:      p.Trigger,
		rollbackOfID: failed.ID,
	})
}

func (s *Service) rollbackSubject(ctx context.Context, inst *model.Instance, executionID string) (*model.Execution, error) {
	if executionID != "" {
		exec, err := s.executions.GetByID(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if exec == nil || exec.InstanceID != inst.ID {
			return nil, fmt.Errorf("execution %s not found for instance %s: %w", executionID, inst.ID, ErrNoRollbackTarget)
		}
		if exec.State != model.ExecutionFailed {
			return nil, fmt.Errorf("execution %s is %s, not failed: %w", executionID, exec.State, ErrNoRollbackTarget)
		}
		return exec, nil
	}

	recent, _, err := s.executions.ListByInstance(ctx, inst.ID, 20, "")
	if err != nil {
		return nil, err
	}
	for i := range recent {
		if recent[i].State == model.ExecutionFailed {
			return &recent[i], nil
		}
	}
	return nil, fmt.Errorf("instance %s has no failed execution: %w", inst.ID, ErrNoRollbackTarget)
}

func (s *Service) load(ctx context.Context, instanceID string) (*model.Instance, *model.Template, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	if inst == nil {
		return nil, nil, ErrInstanceNotFound
	}

	tpl, err := s.templates.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if tpl == nil {
		return nil, nil, fmt.Errorf("template %s for instance %s: %w", inst.TemplateID, inst.ID, ErrTemplateNotFound)
	}
	return inst, tpl, nil
}

type scaleTarget struct {
	cpuCores  float64
	memoryGB  int
	storageGB int
}

type opRequest struct {
	op             string
	toVersion      string
	actor          string
	trigger        string
	reason         string
	configSnapshot json.RawMessage

	// newConfig, when set, becomes the instance's effective config on
	// success.
	newConfig json.RawMessage

	rollbackOfID      string
	rollbackOnFailure bool
	backupData        bool
	scale             *scaleTarget
}

// execute runs one lifecycle operation end to end. Backend failures and
// timeouts settle the execution as failed and return it with a nil error:
// callers distinguish a rejected request (error) from a completed-but-failed
// operation (execution state). Adapter faults settle the execution, then
// surface the fault to the caller.
func (s *Service) execute(ctx context.Context, inst *model.Instance, tpl *model.Template, req opRequest) (*model.Execution, error) {
	if !s.locks.TryLock(inst.ID) {
		return nil, ErrConflict
	}
	defer s.locks.Unlock(inst.ID)
	return s.executeLocked(ctx, inst, tpl, req)
}

func (s *Service) executeLocked(ctx context.Context, inst *model.Instance, tpl *model.Template, req opRequest) (*model.Execution, error) {
	if !model.CanTransition(inst.State, req.op) {
		return nil, fmt.Errorf("%s from state %s: %w", req.op, inst.State, ErrInvalidState)
	}

	running, err := s.executions.RunningByInstance(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, fmt.Errorf("execution %s (%s) is running: %w", running.ID, running.Operation, ErrConflict)
	}

	trigger := req.trigger
	if trigger == "" {
		trigger = model.TriggerManual
	}

	now := time.Now().UTC()
	exec := &model.Execution{
		ID:          platform.NewID(),
		InstanceID:  inst.ID,
		Operation:   req.op,
		State:       model.ExecutionRunning,
		StartedAt:   now,
		Config:      req.configSnapshot,
		Actor:       req.actor,
		TriggerType: trigger,
		CreatedAt:   now,
	}
	if inst.Version != "" {
		from := inst.Version
		exec.FromVersion = &from
	}
	if req.toVersion != "" {
		to := req.toVersion
		exec.ToVersion = &to
	}
	if req.rollbackOfID != "" {
		of := req.rollbackOfID
		exec.RollbackOfID = &of
	}
	if err := s.executions.Create(ctx, exec); err != nil {
		return nil, err
	}

	prevState := inst.State
	if transient := model.TransientState(req.op); transient != "" {
		reason := fmt.Sprintf("%s started by %s", req.op, req.actor)
		if req.reason != "" {
			reason = fmt.Sprintf("%s started by %s: %s", req.op, req.actor, req.reason)
		}
		if err := s.instances.UpdateState(ctx, inst.ID, transient, &reason); err != nil {
			return exec, err
		}
		inst.State = transient
	}

	s.logger.Info().
		Str("instance_id", inst.ID).
		Str("execution_id", exec.ID).
		Str("operation", req.op).
		Str("backend", tpl.BackendKind).
		Str("to_version", req.toVersion).
		Msg("starting operation")

	ad, err := s.adapters.Get(tpl.BackendKind)
	if err != nil {
		if settleErr := s.settleFailure(ctx, inst, exec, prevState, model.ResultFailure,
			fmt.Sprintf("resolve %s adapter: %v", tpl.BackendKind, err), "", "", ""); settleErr != nil {
			return exec, settleErr
		}
		return exec, fmt.Errorf("%s instance %s: resolve %s adapter: %w", req.op, inst.ID, tpl.BackendKind, err)
	}

	timeout := tpl.OperationTimeout(s.defaultTimeout)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := s.invoke(opCtx, ad, s.adapterContext(inst, tpl, exec, req), req.op)
	elapsed := time.Since(start).Seconds()

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		metrics.ObserveOperation(req.op, model.ResultTimeout, elapsed)
		if settleErr := s.settleFailure(ctx, inst, exec, prevState, model.ResultTimeout,
			fmt.Sprintf("%s timed out after %s", req.op, timeout), "", "", ""); settleErr != nil {
			return exec, settleErr
		}
		s.rollbackFailedUpgrade(ctx, inst, tpl, exec, req)
		return exec, nil
	case err != nil:
		metrics.ObserveOperation(req.op, model.ResultFailure, elapsed)
		if settleErr := s.settleFailure(ctx, inst, exec, prevState, model.ResultFailure,
			err.Error(), "", "", ""); settleErr != nil {
			return exec, settleErr
		}
		return exec, fmt.Errorf("%s instance %s: %w", req.op, inst.ID, err)
	case !res.Success:
		metrics.ObserveOperation(req.op, model.ResultFailure, elapsed)
		if settleErr := s.settleFailure(ctx, inst, exec, prevState, model.ResultFailure,
			res.Message, res.Logs, res.BackendJobID, res.BackendJobURL); settleErr != nil {
			return exec, settleErr
		}
		s.rollbackFailedUpgrade(ctx, inst, tpl, exec, req)
		return exec, nil
	}

	metrics.ObserveOperation(req.op, model.ResultSuccess, elapsed)
	return exec, s.settleSuccess(ctx, inst, exec, req, res)
}

// rollbackFailedUpgrade reverses a failed upgrade in place when the caller
// asked for rollback on failure. It runs under the lock executeLocked's
// caller already holds; the failed execution is settled by the time it is
// called, so the running-execution guard sees a clean instance. Without a
// successful execution at the upgrade's from_version the instance stays
// failed.
func (s *Service) rollbackFailedUpgrade(ctx context.Context, inst *model.Instance, tpl *model.Template, failed *model.Execution, req opRequest) {
	if req.op != model.OpUpgrade || !req.rollbackOnFailure {
		return
	}
	if failed.FromVersion == nil || *failed.FromVersion == "" {
		return
	}

	target, err := s.executions.LastSuccessfulAtVersion(ctx, inst.ID, *failed.FromVersion)
	if err != nil || target == nil || target.ToVersion == nil {
		s.logger.Warn().
			Err(err).
			Str("instance_id", inst.ID).
			Str("execution_id", failed.ID).
			Str("from_version", *failed.FromVersion).
			Msg("no rollback target after failed upgrade")
		return
	}

	if _, err := s.executeLocked(ctx, inst, tpl, opRequest{
		op:           model.OpRollback,
		toVersion:    *target.ToVersion,
		actor:        req.actor,
		trigger:      model.TriggerAutomated,
		rollbackOfID: failed.ID,
	}); err != nil {
		s.logger.Error().
			Err(err).
			Str("instance_id", inst.ID).
			Str("execution_id", failed.ID).
			Msg("automatic rollback failed")
	}
}

func (s *Service) invoke(ctx context.Context, ad adapter.Adapter, ec *adapter.Context, op string) (*adapter.Result, error) {
	switch op {
	case model.OpProvision:
		return ad.Provision(ctx, ec)
	case model.OpUpgrade:
		return ad.Upgrade(ctx, ec)
	case model.OpScale:
		return ad.Scale(ctx, ec)
	case model.OpSuspend:
		return ad.Suspend(ctx, ec)
	case model.OpResume:
		return ad.Resume(ctx, ec)
	case model.OpDestroy:
		return ad.Destroy(ctx, ec)
	case model.OpRollback:
		return ad.Rollback(ctx, ec)
	default:
		return nil, fmt.Errorf("operation %s has no backend invocation", op)
	}
}

func (s *Service) adapterContext(inst *model.Instance, tpl *model.Template, exec *model.Execution, req opRequest) *adapter.Context {
	effective := inst.Config
	if len(req.newConfig) > 0 {
		effective = req.newConfig
	}
	cfg := map[string]any{}
	if len(effective) > 0 {
		_ = json.Unmarshal(effective, &cfg)
	}

	ec := &adapter.Context{
		TenantID:        inst.TenantID,
		InstanceID:      inst.ID,
		ExecutionID:     exec.ID,
		Operation:       req.op,
		TemplateName:    tpl.Name,
		TemplateVersion: tpl.Version,
		Config:          cfg,
		CPUCores:        inst.CPUCores,
		MemoryGB:        inst.MemoryGB,
		StorageGB:       inst.StorageGB,
		Environment:     inst.Environment,
		Region:          inst.Region,
		FromVersion:     inst.Version,
		ToVersion:       req.toVersion,
		ChartURL:        tpl.ChartURL,
		ChartVersion:    tpl.ChartVersion,
		PlaybookPath:    tpl.PlaybookPath,
		ModulePath:      tpl.ModulePath,
		ComposeFilePath: tpl.ComposeFilePath,
		Tags:            inst.Tags,
		Actor:           req.actor,
		Reason:          req.reason,
		BackupData:      req.backupData,
	}
	if len(tpl.RequiredSecrets) > 0 {
		ec.Secrets = resolveSecrets(tpl.RequiredSecrets)
	}
	if req.scale != nil {
		ec.CPUCores = req.scale.cpuCores
		ec.MemoryGB = req.scale.memoryGB
		ec.StorageGB = req.scale.storageGB
	}
	if inst.Namespace != nil {
		ec.Namespace = *inst.Namespace
	}
	if inst.ClusterName != nil {
		ec.ClusterName = *inst.ClusterName
	}
	if inst.BackendID != nil {
		ec.BackendID = *inst.BackendID
	}
	return ec
}

// resolveSecrets reads the declared secret names from the orchestrator's
// environment. Secret material is operator-injected and never passes through
// the registry; names absent from the environment are left for the backend
// to reject.
func resolveSecrets(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			out[name] = v
		}
	}
	return out
}

// settleFailure completes the execution as failed and moves the instance to
// its failure state. A failed destroy restores the state the instance held
// before the attempt; a failed scale leaves the state untouched.
func (s *Service) settleFailure(ctx context.Context, inst *model.Instance, exec *model.Execution, prevState, result, message, logs, jobID, jobURL string) error {
	fp := registry.FinishParams{
		State:  model.ExecutionFailed,
		Result: result,
	}
	if message != "" {
		fp.ErrorMessage = &message
	}
	if logs != "" {
		fp.Logs = &logs
	}
	if jobID != "" {
		fp.BackendJobID = &jobID
	}
	if jobURL != "" {
		fp.BackendJobURL = &jobURL
	}
	if err := s.executions.Finish(ctx, exec.ID, fp); err != nil {
		return err
	}
	exec.State = model.ExecutionFailed
	exec.Result = &result
	exec.ErrorMessage = &message

	finalState := model.StateFailed
	reason := message
	switch exec.Operation {
	case model.OpScale:
		finalState = inst.State
	case model.OpDestroy:
		finalState = prevState
		reason = fmt.Sprintf("destroy failed, state restored: %s", message)
	}

	if finalState != inst.State {
		if err := s.instances.UpdateState(ctx, inst.ID, finalState, &reason); err != nil {
			return err
		}
		inst.State = finalState
	}

	s.logger.Warn().
		Str("instance_id", inst.ID).
		Str("execution_id", exec.ID).
		Str("operation", exec.Operation).
		Str("result", result).
		Str("state", inst.State).
		Msg("operation failed")
	return nil
}

func (s *Service) settleSuccess(ctx context.Context, inst *model.Instance, exec *model.Execution, req opRequest, res *adapter.Result) error {
	fp := registry.FinishParams{
		State:  model.ExecutionSucceeded,
		Result: model.ResultSuccess,
	}
	if res.Logs != "" {
		fp.Logs = &res.Logs
	}
	if res.BackendJobID != "" {
		fp.BackendJobID = &res.BackendJobID
	}
	if res.BackendJobURL != "" {
		fp.BackendJobURL = &res.BackendJobURL
	}
	if err := s.executions.Finish(ctx, exec.ID, fp); err != nil {
		return err
	}
	exec.State = model.ExecutionSucceeded
	result := model.ResultSuccess
	exec.Result = &result

	switch req.op {
	case model.OpProvision, model.OpUpgrade, model.OpRollback:
		var backendID *string
		if res.BackendJobID != "" {
			backendID = &res.BackendJobID
		}
		if err := s.instances.UpdateDeployment(ctx, inst.ID, req.toVersion, res.Endpoints, backendID); err != nil {
			return err
		}
		inst.Version = req.toVersion
		if res.Endpoints != nil {
			inst.Endpoints = res.Endpoints
		}
		if len(req.newConfig) > 0 {
			if err := s.instances.UpdateConfig(ctx, inst.ID, req.newConfig); err != nil {
				return err
			}
			inst.Config = req.newConfig
		}
	case model.OpScale:
		if err := s.instances.UpdateResources(ctx, inst.ID, req.scale.cpuCores, req.scale.memoryGB, req.scale.storageGB); err != nil {
			return err
		}
		inst.CPUCores = req.scale.cpuCores
		inst.MemoryGB = req.scale.memoryGB
		inst.StorageGB = req.scale.storageGB
	}

	finalState := ""
	switch req.op {
	case model.OpProvision, model.OpUpgrade, model.OpResume, model.OpRollback:
		finalState = model.StateActive
	case model.OpSuspend:
		finalState = model.StateSuspended
	case model.OpDestroy:
		finalState = model.StateDestroyed
	}
	if finalState != "" && finalState != inst.State {
		reason := fmt.Sprintf("%s completed", req.op)
		if err := s.instances.UpdateState(ctx, inst.ID, finalState, &reason); err != nil {
			return err
		}
		inst.State = finalState
	}

	s.logger.Info().
		Str("instance_id", inst.ID).
		Str("execution_id", exec.ID).
		Str("operation", req.op).
		Str("state", inst.State).
		Str("version", inst.Version).
		Msg("operation succeeded")
	return nil
}

// mergeConfig overlays instance overrides on the template defaults. Top-level
// keys in the override win.
func mergeConfig(base, override json.RawMessage) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("parse template default config: %w", err)
		}
	}
	if len(override) > 0 {
		overlay := map[string]any{}
		if err := json.Unmarshal(override, &overlay); err != nil {
			return nil, fmt.Errorf("parse config overrides: %w", err)
		}
		for k, v := range overlay {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return json.Marshal(merged)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
