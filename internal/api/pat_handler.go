package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/auth"
	"github.com/caseline/caseline/internal/pat"
)

// PATService is the personal access token surface the handlers need.
type PATService interface {
	Create(ctx context.Context, email, name string, scopes []string) (string, *pat.Token, error)
	ListActive(ctx context.Context, email string) ([]*pat.Token, error)
	Revoke(ctx context.Context, email, tokenID string) error
}

// patHandler groups personal access token HTTP handlers.
type patHandler struct {
	svc PATService
}

func newPATHandler(svc PATService) *patHandler {
	return &patHandler{svc: svc}
}

// CreateToken handles POST /api/v1/tokens. The raw token appears in this
// response and nowhere else.
func (h *patHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	raw, t, err := h.svc.Create(r.Context(), id.Email, req.Name, req.Scopes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "create_token", "api_token", t.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":    raw,
		"metadata": t,
	})
}

// ListTokens handles GET /api/v1/tokens.
func (h *patHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	tokens, err := h.svc.ListActive(r.Context(), id.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list tokens")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
	})
}

// RevokeToken handles DELETE /api/v1/tokens/{id}. A non-owner gets 403, an
// unknown id 404, and a second revoke succeeds quietly.
func (h *patHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "token id is required")
		return
	}

	if err := h.svc.Revoke(r.Context(), id.Email, tokenID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "revoke_token", "api_token", tokenID)
	w.WriteHeader(http.StatusNoContent)
}
