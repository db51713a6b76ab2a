package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/deployhub/internal/api/middleware"
	"github.com/edvin/deployhub/internal/api/request"
	"github.com/edvin/deployhub/internal/api/response"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/orchestrator"
	"github.com/edvin/deployhub/internal/registry"
)

// Orchestrator drives lifecycle operations against instances.
type Orchestrator interface {
	Provision(ctx context.Context, p orchestrator.ProvisionParams) (*model.Instance, *model.Execution, error)
	Upgrade(ctx context.Context, p orchestrator.UpgradeParams) (*model.Execution, error)
	Scale(ctx context.Context, p orchestrator.ScaleParams) (*model.Execution, error)
	Suspend(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error)
	Resume(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error)
	Destroy(ctx context.Context, p orchestrator.LifecycleParams) (*model.Execution, error)
	Rollback(ctx context.Context, p orchestrator.RollbackParams) (*model.Execution, error)
}

// HealthChecker runs an on-demand backend health check.
type HealthChecker interface {
	Check(ctx context.Context, instanceID string) (*model.HealthRecord, error)
}

// InstanceRegistry is the instance read surface the handler needs.
type InstanceRegistry interface {
	GetByID(ctx context.Context, id string) (*model.Instance, error)
	List(ctx context.Context, params registry.ListParams) ([]model.Instance, bool, error)
}

// ExecutionRegistry is the execution read surface the handler needs.
type ExecutionRegistry interface {
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	ListByInstance(ctx context.Context, instanceID string, limit int, cursor string) ([]model.Execution, bool, error)
}

// HealthRegistry is the health record read surface the handler needs.
type HealthRegistry interface {
	ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.HealthRecord, error)
}

type Instance struct {
	orch       Orchestrator
	checker    HealthChecker
	instances  InstanceRegistry
	executions ExecutionRegistry
	health     HealthRegistry
}

func NewInstance(orch Orchestrator, checker HealthChecker, instances InstanceRegistry, executions ExecutionRegistry, health HealthRegistry) *Instance {
	return &Instance{
		orch:       orch,
		checker:    checker,
		instances:  instances,
		executions: executions,
		health:     health,
	}
}

func (h *Instance) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)
	q := r.URL.Query()

	instances, hasMore, err := h.instances.List(r.Context(), registry.ListParams{
		TenantID:   q.Get("tenant_id"),
		TemplateID: q.Get("template_id"),
		State:      q.Get("state"),
		Limit:      pg.Limit,
		Cursor:     pg.Cursor,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(instances) > 0 {
		nextCursor = instances[len(instances)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, instances, nextCursor, hasMore)
}

func (h *Instance) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.instances.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if inst == nil {
		response.WriteError(w, http.StatusNotFound, "instance not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, inst)
}

// provisionResponse pairs the new instance with the provisioning execution
// so callers can follow the operation without a second request.
type provisionResponse struct {
	Instance  *model.Instance  `json:"instance"`
	Execution *model.Execution `json:"execution"`
}

func (h *Instance) Provision(w http.ResponseWriter, r *http.Request) {
	var req request.ProvisionInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, exec, err := h.orch.Provision(r.Context(), orchestrator.ProvisionParams{
		TenantID:    req.TenantID,
		TemplateID:  req.TemplateID,
		Environment: req.Environment,
		Region:      req.Region,
		Config:      req.Config,
		CPUCores:    req.CPUCores,
		MemoryGB:    req.MemoryGB,
		StorageGB:   req.StorageGB,
		Tags:        req.Tags,
		Actor:       mw.GetActor(r.Context()),
		ApprovedBy:  req.ApprovedBy,
		Trigger:     model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, provisionResponse{Instance: inst, Execution: exec})
}

func (h *Instance) Upgrade(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpgradeInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rollback := true
	if req.RollbackOnFailure != nil {
		rollback = *req.RollbackOnFailure
	}
	exec, err := h.orch.Upgrade(r.Context(), orchestrator.UpgradeParams{
		InstanceID:        id,
		ToVersion:         req.ToVersion,
		ConfigUpdates:     req.ConfigUpdates,
		RollbackOnFailure: rollback,
		Actor:             mw.GetActor(r.Context()),
		Trigger:           model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}

func (h *Instance) Scale(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ScaleInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	exec, err := h.orch.Scale(r.Context(), orchestrator.ScaleParams{
		InstanceID: id,
		CPUCores:   req.CPUCores,
		MemoryGB:   req.MemoryGB,
		StorageGB:  req.StorageGB,
		Actor:      mw.GetActor(r.Context()),
		Trigger:    model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}

func (h *Instance) Suspend(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.orch.Suspend)
}

func (h *Instance) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.orch.Resume)
}

// Destroy reads its own body: destroy also carries the backup_data flag,
// which defaults to true.
func (h *Instance) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.DestroyInstance
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup := true
	if req.BackupData != nil {
		backup = *req.BackupData
	}
	exec, err := h.orch.Destroy(r.Context(), orchestrator.LifecycleParams{
		InstanceID: id,
		Reason:     req.Reason,
		BackupData: backup,
		Actor:      mw.GetActor(r.Context()),
		Trigger:    model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}

func (h *Instance) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, orchestrator.LifecycleParams) (*model.Execution, error)) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.LifecycleInstance
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	exec, err := op(r.Context(), orchestrator.LifecycleParams{
		InstanceID: id,
		Reason:     req.Reason,
		Actor:      mw.GetActor(r.Context()),
		Trigger:    model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}

func (h *Instance) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.RollbackInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	exec, err := h.orch.Rollback(r.Context(), orchestrator.RollbackParams{
		InstanceID:  id,
		ExecutionID: req.ExecutionID,
		Actor:       mw.GetActor(r.Context()),
		Trigger:     model.TriggerManual,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}

func (h *Instance) HealthCheck(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.checker.Check(r.Context(), id)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rec)
}

func (h *Instance) Executions(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)
	execs, hasMore, err := h.executions.ListByInstance(r.Context(), id, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(execs) > 0 {
		nextCursor = execs[len(execs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, execs, nextCursor, hasMore)
}

func (h *Instance) HealthHistory(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)
	records, err := h.health.ListByInstance(r.Context(), id, pg.Limit)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, records)
}

func (h *Instance) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exec == nil {
		response.WriteError(w, http.StatusNotFound, "execution not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, exec)
}
