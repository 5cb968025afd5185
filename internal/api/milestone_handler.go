package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/milestone"
)

// MilestoneStore is the milestone persistence surface the handlers need.
type MilestoneStore interface {
	MilestoneLookup
	Create(ctx context.Context, projectID string, in milestone.CreateMilestoneInput) (*milestone.Milestone, error)
	ListForProject(ctx context.Context, projectID string) ([]*milestone.Milestone, error)
	Update(ctx context.Context, id string, in milestone.UpdateMilestoneInput) (*milestone.Milestone, error)
	Delete(ctx context.Context, id string) error
}

// milestoneHandler groups milestone HTTP handlers.
type milestoneHandler struct {
	store MilestoneStore
	guard *guard
}

func newMilestoneHandler(store MilestoneStore, guard *guard) *milestoneHandler {
	return &milestoneHandler{store: store, guard: guard}
}

// CreateMilestone handles POST /api/v1/projects/{projectID}/milestones
// (MAINTAINER+).
func (h *milestoneHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req milestone.CreateMilestoneInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	m, err := h.store.Create(r.Context(), projectID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_milestone", "milestone", m.ID, "project_id", projectID)
	writeJSON(w, http.StatusCreated, m)
}

// ListMilestones handles GET /api/v1/projects/{projectID}/milestones.
func (h *milestoneHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	milestones, err := h.store.ListForProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list milestones")
		return
	}
	if milestones == nil {
		milestones = []*milestone.Milestone{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"milestones": milestones,
	})
}

// GetMilestone handles GET /api/v1/milestones/{milestoneID}.
func (h *milestoneHandler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	m, err := h.guard.requireMilestoneRole(r.Context(), chi.URLParam(r, "milestoneID"), id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMilestone handles PUT /api/v1/milestones/{milestoneID} (MAINTAINER+).
func (h *milestoneHandler) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	milestoneID := chi.URLParam(r, "milestoneID")

	if _, err := h.guard.requireMilestoneRole(r.Context(), milestoneID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req milestone.UpdateMilestoneInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	m, err := h.store.Update(r.Context(), milestoneID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_milestone", "milestone", milestoneID)
	writeJSON(w, http.StatusOK, m)
}

// DeleteMilestone handles DELETE /api/v1/milestones/{milestoneID}
// (MAINTAINER+). Runs referencing the milestone keep running with the
// reference cleared.
func (h *milestoneHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	milestoneID := chi.URLParam(r, "milestoneID")

	if _, err := h.guard.requireMilestoneRole(r.Context(), milestoneID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), milestoneID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_milestone", "milestone", milestoneID)
	w.WriteHeader(http.StatusNoContent)
}
