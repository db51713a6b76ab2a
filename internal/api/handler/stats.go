package handler

import (
	"context"
	"net/http"

	"github.com/edvin/deployhub/internal/api/response"
	"github.com/edvin/deployhub/internal/registry"
)

// StatsRegistry computes fleet-wide deployment statistics.
type StatsRegistry interface {
	Overview(ctx context.Context, tenantID string) (*registry.Stats, error)
}

type Stats struct {
	svc StatsRegistry
}

func NewStats(svc StatsRegistry) *Stats {
	return &Stats{svc: svc}
}

func (h *Stats) Overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Overview(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}
