package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/auth"
	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/mail"
	"github.com/caseline/caseline/internal/token"
	"github.com/caseline/caseline/internal/user"
)

// InviteStore is the invitation persistence surface the handlers need.
type InviteStore interface {
	Create(ctx context.Context, groupID, email string, role group.Role, tokenHash string, expiresAt time.Time) (*group.Invitation, error)
	ListPending(ctx context.Context, groupID string) ([]*group.Invitation, error)
	Cancel(ctx context.Context, groupID, inviteID string) error
	GetPendingByHash(ctx context.Context, tokenHash string, now time.Time) (*group.Invitation, error)
	Accept(ctx context.Context, inviteID, userID string, role group.Role) (*group.Membership, error)
}

// UserLookup resolves the account an invitation is accepted with.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// inviteHandler groups invitation HTTP handlers.
type inviteHandler struct {
	invites   InviteStore
	groups    GroupStore
	users     UserLookup
	guard     *guard
	mailer    mail.Mailer
	inviteTTL time.Duration
	baseURL   string
	now       func() time.Time
}

func newInviteHandler(invites InviteStore, groups GroupStore, users UserLookup, guard *guard, mailer mail.Mailer, inviteTTL time.Duration, baseURL string) *inviteHandler {
	return &inviteHandler{
		invites:   invites,
		groups:    groups,
		users:     users,
		guard:     guard,
		mailer:    mailer,
		inviteTTL: inviteTTL,
		baseURL:   baseURL,
		now:       time.Now,
	}
}

// CreateInvite handles POST /api/v1/groups/{groupID}/invitations
// (MAINTAINER+). At most one PENDING invitation exists per (group, email);
// reissuing cancels the prior one.
func (h *inviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
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
		Email string     `json:"email"`
		Role  group.Role `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email is required")
		return
	}
	if req.Role == "" {
		req.Role = group.RoleMember
	}
	if !req.Role.Valid() || req.Role == group.RoleOwner {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "role must be MAINTAINER or MEMBER")
		return
	}

	email := auth.NormalizeEmail(req.Email)

	// An address already holding a live membership cannot be invited:
	// accepting the token would rewrite the existing role, the OWNER's
	// included.
	uid, err := h.guard.checker.RequireUser(r.Context(), email)
	switch {
	case err == nil:
		m, merr := h.guard.checker.Membership(r.Context(), groupID, uid)
		switch {
		case merr == nil && m.Status != group.StatusRemoved:
			writeError(w, http.StatusConflict, "conflict", "the invited address already belongs to this group")
			return
		case merr != nil && !errors.Is(merr, group.ErrMembershipNotFound):
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to check membership")
			return
		}
	case !errors.Is(err, group.ErrUserNotFound):
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve invitee")
		return
	}

	raw := token.NewRaw()
	inv, err := h.invites.Create(r.Context(), groupID, email, req.Role,
		token.Hash(raw), h.now().Add(h.inviteTTL))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	g, err := h.groups.GetByID(r.Context(), groupID)
	groupName := groupID
	if err == nil {
		groupName = g.Name
	}
	if err := h.mailer.Send(r.Context(), mail.InviteMessage(inv.Email, h.baseURL, groupName, raw)); err != nil {
		slog.Error("failed to send invitation mail", "to", inv.Email, "error", err)
	}

	auditLog(r, "create_invitation", "group_invitation", inv.ID, "group_id", groupID, "invitee", inv.Email)
	writeJSON(w, http.StatusCreated, inv)
}

// ListInvites handles GET /api/v1/groups/{groupID}/invitations (MAINTAINER+).
func (h *inviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	invites, err := h.invites.ListPending(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list invitations")
		return
	}
	if invites == nil {
		invites = []*group.Invitation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invitations": invites,
	})
}

// CancelInvite handles DELETE /api/v1/groups/{groupID}/invitations/{inviteID}
// (MAINTAINER+).
func (h *inviteHandler) CancelInvite(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	inviteID := chi.URLParam(r, "inviteID")

	if _, err := h.guard.requireGroupRole(r.Context(), groupID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.invites.Cancel(r.Context(), groupID, inviteID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "cancel_invitation", "group_invitation", inviteID, "group_id", groupID)
	w.WriteHeader(http.StatusNoContent)
}

// AcceptInvite handles POST /api/v1/invitations/accept (public). The token is
// single-use: the PENDING -> ACCEPTED transition picks one winner under
// concurrent accepts. The invitee must already hold an account under the
// invited address.
func (h *inviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	inv, err := h.invites.GetPendingByHash(r.Context(), token.Hash(req.Token), h.now())
	if err != nil {
		// Unknown, expired, and consumed tokens all look alike.
		writeError(w, http.StatusUnauthorized, "unauthorized", "token invalid or expired")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), inv.Email)
	if err != nil || u == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "no account exists for the invited address; register first")
		return
	}

	// One transaction: the invitation is consumed only if the membership is
	// created, so a store failure leaves the token retryable.
	m, err := h.invites.Accept(r.Context(), inv.ID, u.ID, inv.Role)
	if err != nil {
		switch {
		case errors.Is(err, group.ErrAlreadyMember):
			writeDomainError(w, err)
		case errors.Is(err, group.ErrInviteNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized", "token invalid or expired")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to accept invitation")
		}
		return
	}

	auditLog(r, "accept_invitation", "group_invitation", inv.ID, "group_id", inv.GroupID, "user_id", u.ID)
	writeJSON(w, http.StatusOK, m)
}
