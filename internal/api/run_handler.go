package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/run"
)

// RunStore is the run and result persistence surface the handlers need.
type RunStore interface {
	RunLookup
	Create(ctx context.Context, projectID, createdBy string, in run.CreateRunInput) (*run.Run, error)
	ListForProject(ctx context.Context, projectID string) ([]*run.Run, error)
	Close(ctx context.Context, id string) (*run.Run, error)
	Delete(ctx context.Context, id string) error
	RecordResult(ctx context.Context, runID, executedBy string, in run.RecordResultInput) (*run.Result, error)
	ListResults(ctx context.Context, runID string) ([]*run.Result, error)
	ListFailed(ctx context.Context, runID string) ([]*run.Result, error)
	Summarize(ctx context.Context, runID string) (*run.Summary, error)
}

// runHandler groups test run and result HTTP handlers.
type runHandler struct {
	store RunStore
	guard *guard
}

func newRunHandler(store RunStore, guard *guard) *runHandler {
	return &runHandler{store: store, guard: guard}
}

// CreateRun handles POST /api/v1/projects/{projectID}/runs (MEMBER+).
func (h *runHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	var req run.CreateRunInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "title is required")
		return
	}

	tr, err := h.store.Create(r.Context(), projectID, id.UserID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_run", "test_run", tr.ID, "project_id", projectID)
	writeJSON(w, http.StatusCreated, tr)
}

// ListRuns handles GET /api/v1/projects/{projectID}/runs.
func (h *runHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	runs, err := h.store.ListForProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*run.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *runHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	tr, err := h.guard.requireRunRole(r.Context(), chi.URLParam(r, "runID"), id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// CloseRun handles POST /api/v1/runs/{runID}/close (MEMBER+). Closing an
// already-closed run succeeds without changing closed_at.
func (h *runHandler) CloseRun(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	if _, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	tr, err := h.store.Close(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "close_run", "test_run", runID)
	writeJSON(w, http.StatusOK, tr)
}

// DeleteRun handles DELETE /api/v1/runs/{runID} (MAINTAINER+).
func (h *runHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	if _, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), runID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_run", "test_run", runID)
	w.WriteHeader(http.StatusNoContent)
}

// RecordResult handles POST /api/v1/runs/{runID}/results (MEMBER+). Recording
// the same case twice overwrites the prior outcome; closed runs refuse writes.
func (h *runHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	if _, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	var req run.RecordResultInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.CaseID == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "case_id is required")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "validation_error",
			"status must be PASSED, FAILED, BLOCKED, SKIPPED, or UNTESTED")
		return
	}

	res, err := h.store.RecordResult(r.Context(), runID, id.UserID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "record_result", "test_result", res.ID, "run_id", runID, "case_id", req.CaseID, "status", string(req.Status))
	writeJSON(w, http.StatusCreated, res)
}

// ListResults handles GET /api/v1/runs/{runID}/results.
func (h *runHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	if _, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	results, err := h.store.ListResults(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list results")
		return
	}
	if results == nil {
		results = []*run.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// GetSummary handles GET /api/v1/runs/{runID}/summary.
func (h *runHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	if _, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	sum, err := h.store.Summarize(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to summarize run")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
