package handler

import (
	"errors"
	"net/http"

	"github.com/edvin/deployhub/internal/api/response"
	"github.com/edvin/deployhub/internal/orchestrator"
	"github.com/edvin/deployhub/internal/scheduler"
)

// writeOperationError maps orchestrator and scheduler sentinel errors to
// HTTP status codes. Anything unrecognized is a 500.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrTemplateNotFound),
		errors.Is(err, orchestrator.ErrInstanceNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrTemplateInactive),
		errors.Is(err, orchestrator.ErrDuplicateInstance),
		errors.Is(err, orchestrator.ErrInvalidState),
		errors.Is(err, orchestrator.ErrConflict),
		errors.Is(err, orchestrator.ErrNoRollbackTarget):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrBadSchedule),
		errors.Is(err, scheduler.ErrPastTime),
		errors.Is(err, scheduler.ErrBadCron),
		errors.Is(err, scheduler.ErrNotSchedulable):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
