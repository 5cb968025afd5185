package api

import (
	"net/http"

	"github.com/caseline/caseline/internal/auth"
)

// requireIdentity extracts the authenticated identity or terminates the
// request with 401. Handlers behind the auth middleware always find one; the
// check guards against a route wired outside it.
func requireIdentity(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
	}
	return id
}
