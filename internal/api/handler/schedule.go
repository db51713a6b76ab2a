package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deployhub/internal/activity"
	mw "github.com/edvin/deployhub/internal/api/middleware"
	"github.com/edvin/deployhub/internal/api/request"
	"github.com/edvin/deployhub/internal/api/response"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/scheduler"
)

// ScheduleBridge registers and manages deferred operation schedules.
type ScheduleBridge interface {
	Create(ctx context.Context, p scheduler.CreateParams) (*scheduler.Descriptor, error)
	List(ctx context.Context) ([]scheduler.Summary, error)
	Delete(ctx context.Context, scheduleID string) error
	Pause(ctx context.Context, scheduleID, note string) error
	Unpause(ctx context.Context, scheduleID, note string) error
}

type Schedule struct {
	bridge    ScheduleBridge
	instances InstanceRegistry
}

func NewSchedule(bridge ScheduleBridge, instances InstanceRegistry) *Schedule {
	return &Schedule{bridge: bridge, instances: instances}
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var provision *activity.ProvisionRequest
	if req.Operation == model.OpProvision {
		if req.Provision == nil {
			response.WriteError(w, http.StatusBadRequest, "provision payload required for a scheduled provision")
			return
		}
		provision = &activity.ProvisionRequest{
			TenantID:    req.Provision.TenantID,
			TemplateID:  req.Provision.TemplateID,
			Environment: req.Provision.Environment,
			Region:      req.Provision.Region,
			Config:      req.Provision.Config,
			CPUCores:    req.Provision.CPUCores,
			MemoryGB:    req.Provision.MemoryGB,
			StorageGB:   req.Provision.StorageGB,
			Tags:        req.Provision.Tags,
		}
	} else {
		// The schedule fires long after this request; reject unknown
		// instances now rather than at fire time.
		inst, err := h.instances.GetByID(r.Context(), req.InstanceID)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if inst == nil {
			response.WriteError(w, http.StatusNotFound, "instance not found")
			return
		}
	}

	desc, err := h.bridge.Create(r.Context(), scheduler.CreateParams{
		InstanceID:      req.InstanceID,
		Operation:       req.Operation,
		ToVersion:       req.ToVersion,
		Actor:           mw.GetActor(r.Context()),
		Provision:       provision,
		ScheduledAt:     req.ScheduledAt,
		CronExpression:  req.CronExpression,
		IntervalSeconds: req.IntervalSeconds,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, desc)
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.bridge.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []scheduler.Summary{}
	}

	response.WriteJSON(w, http.StatusOK, summaries)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bridge.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Schedule) Pause(w http.ResponseWriter, r *http.Request) {
	h.pause(w, r, true)
}

func (h *Schedule) Unpause(w http.ResponseWriter, r *http.Request) {
	h.pause(w, r, false)
}

func (h *Schedule) pause(w http.ResponseWriter, r *http.Request, pause bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	note := "via api by " + mw.GetActor(r.Context())
	if pause {
		err = h.bridge.Pause(r.Context(), id, note)
	} else {
		err = h.bridge.Unpause(r.Context(), id, note)
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
