package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"github.com/mortality-lab/kcor/pkg/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// RunHandler serves recorded analysis runs
type RunHandler struct {
	runUC usecase.RunUseCase
}

// NewRunHandler creates a new run handler
func NewRunHandler(runUC usecase.RunUseCase) *RunHandler {
	return &RunHandler{runUC: runUC}
}

// HandleList returns the newest runs. The limit query parameter defaults to 50.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, r, goerr.New("limit must be an integer between 1 and 1000", goerr.V("limit", v)), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runUC.ListRuns(r.Context(), limit)
	if err != nil {
		ctxlog.From(r.Context()).Error("Failed to list runs", "error", err)
		writeError(w, r, goerr.New("failed to list runs"), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.RunRecord{}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGet returns one run
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := types.RunID(chi.URLParam(r, "runID"))

	run, err := h.runUC.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			writeError(w, r, goerr.New("run not found", goerr.V("id", id)), http.StatusNotFound)
			return
		}
		ctxlog.From(r.Context()).Error("Failed to get run", "error", err, "id", id)
		writeError(w, r, goerr.New("failed to get run"), http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, run)
}
