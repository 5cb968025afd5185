package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/testcase"
)

// SuiteStore is the suite and case persistence surface the handlers need.
type SuiteStore interface {
	SuiteLookup
	CaseLookup
	CreateSuite(ctx context.Context, projectID string, in testcase.CreateSuiteInput) (*testcase.Suite, error)
	ListSuites(ctx context.Context, projectID string) ([]*testcase.Suite, error)
	UpdateSuite(ctx context.Context, id string, in testcase.UpdateSuiteInput) (*testcase.Suite, error)
	DeleteSuite(ctx context.Context, id string) error
	CreateCase(ctx context.Context, suiteID string, in testcase.CreateCaseInput) (*testcase.Case, error)
	ListCases(ctx context.Context, suiteID string) ([]*testcase.Case, error)
	UpdateCase(ctx context.Context, id string, in testcase.UpdateCaseInput) (*testcase.Case, error)
	DeleteCase(ctx context.Context, id string) error
}

// suiteHandler groups test suite and test case HTTP handlers.
type suiteHandler struct {
	store SuiteStore
	guard *guard
}

func newSuiteHandler(store SuiteStore, guard *guard) *suiteHandler {
	return &suiteHandler{store: store, guard: guard}
}

// CreateSuite handles POST /api/v1/projects/{projectID}/suites (MAINTAINER+).
func (h *suiteHandler) CreateSuite(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req testcase.CreateSuiteInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	su, err := h.store.CreateSuite(r.Context(), projectID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_suite", "test_suite", su.ID, "project_id", projectID)
	writeJSON(w, http.StatusCreated, su)
}

// ListSuites handles GET /api/v1/projects/{projectID}/suites.
func (h *suiteHandler) ListSuites(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	suites, err := h.store.ListSuites(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list suites")
		return
	}
	if suites == nil {
		suites = []*testcase.Suite{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suites": suites,
	})
}

// GetSuite handles GET /api/v1/suites/{suiteID}.
func (h *suiteHandler) GetSuite(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	su, err := h.guard.requireSuiteRole(r.Context(), chi.URLParam(r, "suiteID"), id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, su)
}

// UpdateSuite handles PUT /api/v1/suites/{suiteID} (MAINTAINER+).
func (h *suiteHandler) UpdateSuite(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	suiteID := chi.URLParam(r, "suiteID")

	if _, err := h.guard.requireSuiteRole(r.Context(), suiteID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req testcase.UpdateSuiteInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	su, err := h.store.UpdateSuite(r.Context(), suiteID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_suite", "test_suite", suiteID)
	writeJSON(w, http.StatusOK, su)
}

// DeleteSuite handles DELETE /api/v1/suites/{suiteID} (MAINTAINER+).
func (h *suiteHandler) DeleteSuite(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	suiteID := chi.URLParam(r, "suiteID")

	if _, err := h.guard.requireSuiteRole(r.Context(), suiteID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.DeleteSuite(r.Context(), suiteID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_suite", "test_suite", suiteID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateCase handles POST /api/v1/suites/{suiteID}/cases (MAINTAINER+).
func (h *suiteHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	suiteID := chi.URLParam(r, "suiteID")

	if _, err := h.guard.requireSuiteRole(r.Context(), suiteID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req testcase.CreateCaseInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "title is required")
		return
	}
	if req.Priority == "" {
		req.Priority = testcase.PriorityMedium
	}
	if !req.Priority.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "priority must be LOW, MEDIUM, HIGH, or CRITICAL")
		return
	}

	c, err := h.store.CreateCase(r.Context(), suiteID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_case", "test_case", c.ID, "suite_id", suiteID)
	writeJSON(w, http.StatusCreated, c)
}

// ListCases handles GET /api/v1/suites/{suiteID}/cases.
func (h *suiteHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	suiteID := chi.URLParam(r, "suiteID")

	if _, err := h.guard.requireSuiteRole(r.Context(), suiteID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	cases, err := h.store.ListCases(r.Context(), suiteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list cases")
		return
	}
	if cases == nil {
		cases = []*testcase.Case{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
	})
}

// GetCase handles GET /api/v1/cases/{caseID}.
func (h *suiteHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	c, err := h.guard.requireCaseRole(r.Context(), chi.URLParam(r, "caseID"), id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCase handles PUT /api/v1/cases/{caseID} (MAINTAINER+).
func (h *suiteHandler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	caseID := chi.URLParam(r, "caseID")

	if _, err := h.guard.requireCaseRole(r.Context(), caseID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req testcase.UpdateCaseInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Priority != nil && !req.Priority.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "priority must be LOW, MEDIUM, HIGH, or CRITICAL")
		return
	}

	c, err := h.store.UpdateCase(r.Context(), caseID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_case", "test_case", caseID)
	writeJSON(w, http.StatusOK, c)
}

// DeleteCase handles DELETE /api/v1/cases/{caseID} (MAINTAINER+).
func (h *suiteHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	caseID := chi.URLParam(r, "caseID")

	if _, err := h.guard.requireCaseRole(r.Context(), caseID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.DeleteCase(r.Context(), caseID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_case", "test_case", caseID)
	w.WriteHeader(http.StatusNoContent)
}
