package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/project"
)

// ProjectStore is the project persistence surface the handlers need.
type ProjectStore interface {
	ProjectLookup
	Create(ctx context.Context, groupID string, in project.CreateProjectInput) (*project.Project, error)
	ListForGroup(ctx context.Context, groupID string) ([]*project.Project, error)
	Update(ctx context.Context, id string, in project.UpdateProjectInput) (*project.Project, error)
	Delete(ctx context.Context, id string) error
}

// projectHandler groups project HTTP handlers.
type projectHandler struct {
	store ProjectStore
	guard *guard
}

func newProjectHandler(store ProjectStore, guard *guard) *projectHandler {
	return &projectHandler{store: store, guard: guard}
}

// CreateProject handles POST /api/v1/groups/{groupID}/projects (MAINTAINER+).
func (h *projectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req project.CreateProjectInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	p, err := h.store.Create(r.Context(), groupID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_project", "project", p.ID, "group_id", groupID)
	writeJSON(w, http.StatusCreated, p)
}

// ListProjects handles GET /api/v1/groups/{groupID}/projects.
func (h *projectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	projects, err := h.store.ListForGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
	})
}

// GetProject handles GET /api/v1/projects/{projectID}.
func (h *projectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	p, err := h.guard.requireProjectRole(r.Context(), chi.URLParam(r, "projectID"), id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/v1/projects/{projectID} (MAINTAINER+).
func (h *projectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req project.UpdateProjectInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	p, err := h.store.Update(r.Context(), projectID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_project", "project", projectID)
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/v1/projects/{projectID} (OWNER only).
func (h *projectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleOwner); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), projectID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_project", "project", projectID)
	w.WriteHeader(http.StatusNoContent)
}
