package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deployhub/internal/api/request"
	"github.com/edvin/deployhub/internal/api/response"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/platform"
)

// TemplateRegistry is the template persistence surface the handler needs.
type TemplateRegistry interface {
	Create(ctx context.Context, tpl *model.Template) error
	GetByID(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context, activeOnly bool, limit int, cursor string) ([]model.Template, bool, error)
	Update(ctx context.Context, tpl *model.Template) error
	SetActive(ctx context.Context, id string, active bool) error
	InstanceCount(ctx context.Context, id string) (int, error)
}

type Template struct {
	svc TemplateRegistry
}

func NewTemplate(svc TemplateRegistry) *Template {
	return &Template{svc: svc}
}

func (h *Template) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	templates, hasMore, err := h.svc.List(r.Context(), activeOnly, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(templates) > 0 {
		nextCursor = templates[len(templates)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, templates, nextCursor, hasMore)
}

func (h *Template) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTemplate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	tpl := &model.Template{
		ID:             platform.NewID(),
		Name:           req.Name,
		BackendKind:    req.BackendKind,
		DeploymentType: req.DeploymentType,
		Version:        req.Version,

		MinCPUCores:  req.MinCPUCores,
		MinMemoryGB:  req.MinMemoryGB,
		MinStorageGB: req.MinStorageGB,
		MaxUsers:     req.MaxUsers,

		VariablesSchema: req.VariablesSchema,
		DefaultConfig:   req.DefaultConfig,
		RequiredSecrets: req.RequiredSecrets,
		DefaultFeatures: req.DefaultFeatures,

		ChartURL:        req.ChartURL,
		ChartVersion:    req.ChartVersion,
		PlaybookPath:    req.PlaybookPath,
		ModulePath:      req.ModulePath,
		ComposeFilePath: req.ComposeFilePath,

		Active:           true,
		EstimatedMinutes: req.EstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.RequiresApproval != nil {
		tpl.RequiresApproval = *req.RequiresApproval
	}

	if err := h.svc.Create(r.Context(), tpl); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, tpl)
}

func (h *Template) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		response.WriteError(w, http.StatusNotFound, "template not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Template) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateTemplate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		response.WriteError(w, http.StatusNotFound, "template not found")
		return
	}

	if req.Version != nil {
		tpl.Version = *req.Version
	}
	if req.MinCPUCores != nil {
		tpl.MinCPUCores = *req.MinCPUCores
	}
	if req.MinMemoryGB != nil {
		tpl.MinMemoryGB = *req.MinMemoryGB
	}
	if req.MinStorageGB != nil {
		tpl.MinStorageGB = *req.MinStorageGB
	}
	if req.MaxUsers != nil {
		tpl.MaxUsers = *req.MaxUsers
	}
	if req.VariablesSchema != nil {
		tpl.VariablesSchema = req.VariablesSchema
	}
	if req.DefaultConfig != nil {
		tpl.DefaultConfig = req.DefaultConfig
	}
	if req.RequiredSecrets != nil {
		tpl.RequiredSecrets = req.RequiredSecrets
	}
	if req.DefaultFeatures != nil {
		tpl.DefaultFeatures = req.DefaultFeatures
	}
	if req.ChartURL != nil {
		tpl.ChartURL = *req.ChartURL
	}
	if req.ChartVersion != nil {
		tpl.ChartVersion = *req.ChartVersion
	}
	if req.PlaybookPath != nil {
		tpl.PlaybookPath = *req.PlaybookPath
	}
	if req.ModulePath != nil {
		tpl.ModulePath = *req.ModulePath
	}
	if req.ComposeFilePath != nil {
		tpl.ComposeFilePath = *req.ComposeFilePath
	}
	if req.RequiresApproval != nil {
		tpl.RequiresApproval = *req.RequiresApproval
	}
	if req.EstimatedMinutes != nil {
		tpl.EstimatedMinutes = *req.EstimatedMinutes
	}

	if err := h.svc.Update(r.Context(), tpl); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, tpl)
}

// Delete deactivates a template. Templates are never removed; a template
// with live instances cannot even be deactivated this way.
func (h *Template) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		response.WriteError(w, http.StatusNotFound, "template not found")
		return
	}

	count, err := h.svc.InstanceCount(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if count > 0 {
		response.WriteError(w, http.StatusConflict, "template has live instances")
		return
	}

	if err := h.svc.SetActive(r.Context(), id, false); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActive flips the active flag without the instance-count guard. Used to
// reactivate a deactivated template or pull one from circulation.
func (h *Template) SetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.RequireID(chi.URLParam(r, "id"))
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		tpl, err := h.svc.GetByID(r.Context(), id)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tpl == nil {
			response.WriteError(w, http.StatusNotFound, "template not found")
			return
		}

		if err := h.svc.SetActive(r.Context(), id, active); err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		tpl.Active = active
		response.WriteJSON(w, http.StatusOK, tpl)
	}
}
