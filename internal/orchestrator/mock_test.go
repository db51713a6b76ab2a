package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/deployhub/internal/adapter"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/registry"
)

type mockTemplateStore struct {
	mock.Mock
}

func (m *mockTemplateStore) GetByID(ctx context.Context, id string) (*model.Template, error) {
	args := m.Called(ctx, id)
	tpl, _ := args.Get(0).(*model.Template)
	return tpl, args.Error(1)
}

type mockInstanceStore struct {
	mock.Mock
}

func (m *mockInstanceStore) Create(ctx context.Context, inst *model.Instance) error {
	return m.Called(ctx, inst).Error(0)
}

func (m *mockInstanceStore) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	args := m.Called(ctx, id)
	inst, _ := args.Get(0).(*model.Instance)
	return inst, args.Error(1)
}

func (m *mockInstanceStore) GetByTenantEnv(ctx context.Context, tenantID, environment string) (*model.Instance, error) {
	args := m.Called(ctx, tenantID, environment)
	inst, _ := args.Get(0).(*model.Instance)
	return inst, args.Error(1)
}

func (m *mockInstanceStore) ListByStates(ctx context.Context, states []string) ([]model.Instance, error) {
	args := m.Called(ctx, states)
	instances, _ := args.Get(0).([]model.Instance)
	return instances, args.Error(1)
}

func (m *mockInstanceStore) UpdateState(ctx context.Context, id, state string, reason *string) error {
	return m.Called(ctx, id, state, reason).Error(0)
}

func (m *mockInstanceStore) UpdateDeployment(ctx context.Context, id, version string, endpoints map[string]string, backendID *string) error {
	return m.Called(ctx, id, version, endpoints, backendID).Error(0)
}

func (m *mockInstanceStore) UpdateConfig(ctx context.Context, id string, config json.RawMessage) error {
	return m.Called(ctx, id, config).Error(0)
}

func (m *mockInstanceStore) UpdateResources(ctx context.Context, id string, cpuCores float64, memoryGB, storageGB int) error {
	return m.Called(ctx, id, cpuCores, memoryGB, storageGB).Error(0)
}

func (m *mockInstanceStore) UpdateHealth(ctx context.Context, id, status string, detail []byte) error {
	return m.Called(ctx, id, status, detail).Error(0)
}

type mockExecutionStore struct {
	mock.Mock
}

func (m *mockExecutionStore) Create(ctx context.Context, exec *model.Execution) error {
	return m.Called(ctx, exec).Error(0)
}

func (m *mockExecutionStore) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	args := m.Called(ctx, id)
	exec, _ := args.Get(0).(*model.Execution)
	return exec, args.Error(1)
}

func (m *mockExecutionStore) Finish(ctx context.Context, id string, p registry.FinishParams) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *mockExecutionStore) RunningByInstance(ctx context.Context, instanceID string) (*model.Execution, error) {
	args := m.Called(ctx, instanceID)
	exec, _ := args.Get(0).(*model.Execution)
	return exec, args.Error(1)
}

func (m *mockExecutionStore) LastSuccessfulAtVersion(ctx context.Context, instanceID, version string) (*model.Execution, error) {
	args := m.Called(ctx, instanceID, version)
	exec, _ := args.Get(0).(*model.Execution)
	return exec, args.Error(1)
}

func (m *mockExecutionStore) ListByInstance(ctx context.Context, instanceID string, limit int, cursor string) ([]model.Execution, bool, error) {
	args := m.Called(ctx, instanceID, limit, cursor)
	execs, _ := args.Get(0).([]model.Execution)
	return execs, args.Bool(1), args.Error(2)
}

type mockHealthStore struct {
	mock.Mock
}

func (m *mockHealthStore) Insert(ctx context.Context, rec *model.HealthRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockHealthStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// stubAdapter returns canned results and remembers the last execution
// context it was invoked with. An optional delay holds the operation long
// enough for concurrency tests to observe the lock; rollbackResult lets a
// rollback succeed after the primary operation failed.
type stubAdapter struct {
	result         *adapter.Result
	rollbackResult *adapter.Result
	err            error
	health         *adapter.HealthResult
	healthErr      error
	delay          time.Duration

	lastCtx *adapter.Context
}

func (a *stubAdapter) run(ctx context.Context) (*adapter.Result, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.result, a.err
}

func (a *stubAdapter) Provision(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Upgrade(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Scale(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Suspend(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Resume(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Destroy(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	return a.run(ctx)
}

func (a *stubAdapter) Rollback(ctx context.Context, ec *adapter.Context) (*adapter.Result, error) {
	a.lastCtx = ec
	if a.rollbackResult != nil {
		return a.rollbackResult, nil
	}
	return a.run(ctx)
}

func (a *stubAdapter) HealthCheck(_ context.Context, _ *adapter.Context) (*adapter.HealthResult, error) {
	return a.health, a.healthErr
}

type stubFactory struct {
	ad  adapter.Adapter
	err error
}

func (f *stubFactory) Get(string) (adapter.Adapter, error) {
	return f.ad, f.err
}
