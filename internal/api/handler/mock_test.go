package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/orchestrator"
	"github.com/edvin/deployhub/internal/registry"
	"github.com/edvin/deployhub/internal/scheduler"
)

type mockTemplateRegistry struct {
	mock.Mock
}

func (m *mockTemplateRegistry) Create(ctx context.Context, tpl *model.Template) error {
	return m.Called(ctx, tpl).Error(0)
}

func (m *mockTemplateRegistry) GetByID(ctx context.Context, id string) (*model.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *mockTemplateRegistry) List(ctx context.Context, activeOnly bool, limit int, cursor string) ([]model.Template, bool, error) {
	args := m.Called(ctx, activeOnly, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.Template), args.Bool(1), args.Error(2)
}

func (m *mockTemplateRegistry) Update(ctx context.Context, tpl *model.Template) error {
	return m.Called(ctx, tpl).Error(0)
}

func (m *mockTemplateRegistry) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockTemplateRegistry) InstanceCount(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) Provision(ctx context.Context, p orchestrator.ProvisionParams) (*model.Instance, *model.Execution, error) {
	args := m.Called(ctx, p)
	var inst *model.Instance
	var exec *model.Execution
	if args.Get(0) != nil {
		inst = args.Get(0).(*model.Instance)
	}
	if args.Get(1) != nil {
		exec = args.Get(1).(*model.Execution)
	}
	return inst, exec, args.Error(2)
}

func (m *mockOrchestrator) Upgrade(ctx context.Context, p orchestrator.UpgradeParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func (m *mockOrchestrator) Scale(ctx context.Context, p orchestrator.ScaleParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func (m *mockOrchestrator) Suspend(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func (m *mockOrchestrator) Resume(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func (m *mockOrchestrator) Destroy(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func (m *mockOrchestrator) Rollback(ctx context.Context, p orchestrator.RollbackParams) (*model.Execution, error) {
	return execResult(m.Called(ctx, p))
}

func execResult(args mock.Arguments) (*model.Execution, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Execution), args.Error(1)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, instanceID string) (*model.HealthRecord, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HealthRecord), args.Error(1)
}

type mockInstanceRegistry struct {
	mock.Mock
}

func (m *mockInstanceRegistry) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Instance), args.Error(1)
}

func (m *mockInstanceRegistry) List(ctx context.Context, params registry.ListParams) ([]model.Instance, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.Instance), args.Bool(1), args.Error(2)
}

type mockExecutionRegistry struct {
	mock.Mock
}

func (m *mockExecutionRegistry) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	return execResult(m.Called(ctx, id))
}

func (m *mockExecutionRegistry) ListByInstance(ctx context.Context, instanceID string, limit int, cursor string) ([]model.Execution, bool, error) {
	args := m.Called(ctx, instanceID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.Execution), args.Bool(1), args.Error(2)
}

type mockHealthRegistry struct {
	mock.Mock
}

func (m *mockHealthRegistry) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.HealthRecord, error) {
	args := m.Called(ctx, instanceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HealthRecord), args.Error(1)
}

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) Create(ctx context.Context, p scheduler.CreateParams) (*scheduler.Descriptor, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.Descriptor), args.Error(1)
}

func (m *mockBridge) List(ctx context.Context) ([]scheduler.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduler.Summary), args.Error(1)
}

func (m *mockBridge) Delete(ctx context.Context, scheduleID string) error {
	return m.Called(ctx, scheduleID).Error(0)
}

func (m *mockBridge) Pause(ctx context.Context, scheduleID, note string) error {
	return m.Called(ctx, scheduleID, note).Error(0)
}

func (m *mockBridge) Unpause(ctx context.Context, scheduleID, note string) error {
	return m.Called(ctx, scheduleID, note).Error(0)
}

type mockStatsRegistry struct {
	mock.Mock
}

func (m *mockStatsRegistry) Overview(ctx context.Context, tenantID string) (*registry.Stats, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.Stats), args.Error(1)
}
