package adapter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/deployhub/internal/model"
)

// ManualAdapter tracks deployments that are operated by hand. Every
// operation succeeds immediately and records only what the operator
// asserted; no backend is contacted.
type ManualAdapter struct {
	logger zerolog.Logger
}

func NewManualAdapter(logger zerolog.Logger) *ManualAdapter {
	return &ManualAdapter{logger: logger.With().Str("adapter", model.BackendManual).Logger()}
}

func (m *ManualAdapter) record(ec *Context) *Result {
	m.logger.Info().
		Str("instance_id", ec.InstanceID).
		Str("operation", ec.Operation).
		Str("actor", ec.Actor).
		Msg("manual operation recorded")

	res := success(fmt.Sprintf("%s recorded as performed manually by %s", ec.Operation, ec.Actor))
	res.BackendJobID = ec.ExecutionID
	return res
}

func (m *ManualAdapter) Provision(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Upgrade(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Scale(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Suspend(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Resume(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Destroy(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

func (m *ManualAdapter) Rollback(_ context.Context, ec *Context) (*Result, error) {
	return m.record(ec), nil
}

// HealthCheck reports unknown: manual deployments have no probe endpoint
// the control plane can observe.
func (m *ManualAdapter) HealthCheck(_ context.Context, ec *Context) (*HealthResult, error) {
	return &HealthResult{
		Status:  model.HealthUnknown,
		Details: "manually tracked deployment, no automated probe",
		Message: fmt.Sprintf("health of %s is operator-asserted", ec.ReleaseName()),
	}, nil
}

var _ Adapter = (*ManualAdapter)(nil)
