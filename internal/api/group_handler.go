package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
)

// GroupStore is the group persistence surface the handlers need.
type GroupStore interface {
	Create(ctx context.Context, name string, personal bool, ownerID string) (*group.Group, error)
	GetByID(ctx context.Context, id string) (*group.Group, error)
	ListForUser(ctx context.Context, userID string) ([]*group.Group, error)
	UpdateName(ctx context.Context, id, name string) (*group.Group, error)
	Delete(ctx context.Context, id string) error
	ListMembers(ctx context.Context, groupID string) ([]*group.Member, error)
	AddMember(ctx context.Context, groupID, userID string, role group.Role) (*group.Membership, error)
	UpdateMemberRole(ctx context.Context, groupID, userID string, role group.Role) (*group.Membership, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// groupHandler groups group and membership HTTP handlers.
type groupHandler struct {
	store GroupStore
	guard *guard
}

func newGroupHandler(store GroupStore, guard *guard) *groupHandler {
	return &groupHandler{store: store, guard: guard}
}

// CreateGroup handles POST /api/v1/groups. The caller becomes OWNER.
func (h *groupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	g, err := h.store.Create(r.Context(), req.Name, false, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_group", "group", g.ID)
	writeJSON(w, http.StatusCreated, g)
}

// ListGroups handles GET /api/v1/groups — the caller's active memberships.
func (h *groupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}

	groups, err := h.store.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list groups")
		return
	}
	if groups == nil {
		groups = []*group.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
	})
}

// GetGroup handles GET /api/v1/groups/{groupID}.
func (h *groupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	g, err := h.store.GetByID(r.Context(), groupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// UpdateGroup handles PUT /api/v1/groups/{groupID} (MAINTAINER+).
func (h *groupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	g, err := h.store.UpdateName(r.Context(), groupID, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_group", "group", groupID)
	writeJSON(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /api/v1/groups/{groupID} (OWNER only; personal
// groups are refused).
func (h *groupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleOwner); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), groupID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_group", "group", groupID)
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/v1/groups/{groupID}/members.
func (h *groupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMember); err != nil {
		writeDomainError(w, err)
		return
	}

	members, err := h.store.ListMembers(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list members")
		return
	}
	if members == nil {
		members = []*group.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
	})
}

// UpdateMemberRole handles PUT /api/v1/groups/{groupID}/members/{userID}
// (MAINTAINER+). The owner cannot be demoted and OWNER cannot be granted.
func (h *groupHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	targetID := chi.URLParam(r, "userID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Role group.Role `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "role must be OWNER, MAINTAINER, or MEMBER")
		return
	}

	m, err := h.store.UpdateMemberRole(r.Context(), groupID, targetID, req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "update_member_role", "group", groupID, "target_user_id", targetID, "role", string(req.Role))
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember handles DELETE /api/v1/groups/{groupID}/members/{userID}.
// Maintainers can remove others; anyone can remove themselves. The owner
// cannot be removed either way.
func (h *groupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	targetID := chi.URLParam(r, "userID")

	minRole := group.RoleMaintainer
	if targetID == id.UserID {
		minRole = group.RoleMember
	}
	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, minRole); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.RemoveMember(r.Context(), groupID, targetID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "remove_member", "group", groupID, "target_user_id", targetID)
	w.WriteHeader(http.StatusNoContent)
}
