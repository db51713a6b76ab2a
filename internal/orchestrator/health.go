package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/deployhub/internal/adapter"
	"github.com/edvin/deployhub/internal/metrics"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/platform"
)

const sweepConcurrency = 8

type HealthInstanceStore interface {
	GetByID(ctx context.Context, id string) (*model.Instance, error)
	ListByStates(ctx context.Context, states []string) ([]model.Instance, error)
	UpdateState(ctx context.Context, id, state string, reason *string) error
	UpdateHealth(ctx context.Context, id, status string, detail []byte) error
}

type HealthStore interface {
	Insert(ctx context.Context, rec *model.HealthRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Monitor observes instance health through the backend adapters. It only
// ever demotes: an unhealthy report moves an active instance to degraded,
// but recovery back to active requires an operator-driven operation.
type Monitor struct {
	instances HealthInstanceStore
	templates TemplateStore
	health    HealthStore
	adapters  AdapterFactory

	checkTimeout time.Duration
	retention    time.Duration
	logger       zerolog.Logger
}

func NewMonitor(
	instances HealthInstanceStore,
	templates TemplateStore,
	health HealthStore,
	adapters AdapterFactory,
	checkTimeout time.Duration,
	retention time.Duration,
	logger zerolog.Logger,
) *Monitor {
	return &Monitor{
		instances:    instances,
		templates:    templates,
		health:       health,
		adapters:     adapters,
		checkTimeout: checkTimeout,
		retention:    retention,
		logger:       logger.With().Str("component", "health_monitor").Logger(),
	}
}

// Check runs one health check against the instance's backend and records the
// observation. A backend that cannot be reached is unhealthy: adapter faults
// record an unhealthy observation carrying the error, and demote an active
// instance the same way an unhealthy report does.
func (m *Monitor) Check(ctx context.Context, instanceID string) (*model.HealthRecord, error) {
	inst, err := m.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstanceNotFound
	}
	if !model.CanTransition(inst.State, model.OpHealthCheck) {
		return nil, fmt.Errorf("health check from state %s: %w", inst.State, ErrInvalidState)
	}

	tpl, err := m.templates.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s for instance %s: %w", inst.TemplateID, inst.ID, ErrTemplateNotFound)
	}

	rec := &model.HealthRecord{
		ID:         platform.NewID(),
		InstanceID: inst.ID,
		CheckType:  "backend",
		Status:     model.HealthUnknown,
		CheckedAt:  time.Now().UTC(),
	}

	ad, err := m.adapters.Get(tpl.BackendKind)
	if err != nil {
		msg := err.Error()
		rec.Status = model.HealthUnhealthy
		rec.ErrorMessage = &msg
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
		hr, err := ad.HealthCheck(checkCtx, m.checkContext(inst, tpl))
		cancel()
		if err != nil {
			msg := err.Error()
			rec.Status = model.HealthUnhealthy
			rec.ErrorMessage = &msg
		} else {
			rec.Status = hr.Status
			if hr.Endpoint != "" {
				rec.Endpoint = &hr.Endpoint
			}
			if hr.ResponseTime > 0 {
				ms := float64(hr.ResponseTime.Milliseconds())
				rec.ResponseTimeMS = &ms
			}
			if len(hr.Metrics) > 0 {
				rec.Metrics, _ = json.Marshal(hr.Metrics)
			}
			if hr.Details != "" {
				rec.Details = &hr.Details
			}
		}
	}

	if err := m.health.Insert(ctx, rec); err != nil {
		return nil, err
	}
	if err := m.instances.UpdateHealth(ctx, inst.ID, rec.Status, rec.Metrics); err != nil {
		return nil, err
	}
	metrics.ObserveHealthCheck(rec.Status)

	if rec.Status == model.HealthUnhealthy && inst.State == model.StateActive {
		reason := "health check reported unhealthy"
		if rec.Details != nil {
			reason = *rec.Details
		} else if rec.ErrorMessage != nil {
			reason = "health check failed: " + *rec.ErrorMessage
		}
		if err := m.instances.UpdateState(ctx, inst.ID, model.StateDegraded, &reason); err != nil {
			return nil, err
		}
		m.logger.Warn().
			Str("instance_id", inst.ID).
			Str("reason", reason).
			Msg("instance demoted to degraded")
	}

	return rec, nil
}

func (m *Monitor) checkContext(inst *model.Instance, tpl *model.Template) *adapter.Context {
	cfg := map[string]any{}
	if len(inst.Config) > 0 {
		_ = json.Unmarshal(inst.Config, &cfg)
	}
	ec := &adapter.Context{
		TenantID:        inst.TenantID,
		InstanceID:      inst.ID,
		Operation:       model.OpHealthCheck,
		TemplateName:    tpl.Name,
		TemplateVersion: tpl.Version,
		Config:          cfg,
		CPUCores:        inst.CPUCores,
		MemoryGB:        inst.MemoryGB,
		StorageGB:       inst.StorageGB,
		Environment:     inst.Environment,
		Region:          inst.Region,
		FromVersion:     inst.Version,
		ChartURL:        tpl.ChartURL,
		ChartVersion:    tpl.ChartVersion,
		PlaybookPath:    tpl.PlaybookPath,
		ModulePath:      tpl.ModulePath,
		ComposeFilePath: tpl.ComposeFilePath,
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

// SweepResult summarizes one monitoring pass.
type SweepResult struct {
	Checked   int
	Unhealthy int
	Errors    int
	Pruned    int64
}

// Sweep health-checks every active and degraded instance with bounded
// concurrency, then prunes health records past the retention window.
// Individual check failures are counted, not propagated.
func (m *Monitor) Sweep(ctx context.Context) (*SweepResult, error) {
	instances, err := m.instances.ListByStates(ctx, []string{model.StateActive, model.StateDegraded})
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		res SweepResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i := range instances {
		inst := instances[i]
		g.Go(func() error {
			rec, err := m.Check(gctx, inst.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors++
				m.logger.Error().Err(err).Str("instance_id", inst.ID).Msg("health check failed")
				return nil
			}
			res.Checked++
			if rec.Status == model.HealthUnhealthy {
				res.Unhealthy++
			}
			return nil
		})
	}
	_ = g.Wait()

	if m.retention > 0 {
		pruned, err := m.health.PruneOlderThan(ctx, time.Now().UTC().Add(-m.retention))
		if err != nil {
			m.logger.Error().Err(err).Msg("prune health records failed")
		} else {
			res.Pruned = pruned
		}
	}

	m.logger.Info().
		Int("checked", res.Checked).
		Int("unhealthy", res.Unhealthy).
		Int("errors", res.Errors).
		Int64("pruned", res.Pruned).
		Msg("health sweep complete")
	return &res, nil
}
