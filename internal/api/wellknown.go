package api

import "net/http"

// wellKnownManifest is the static JSON manifest for /.well-known/caseline.json.
const wellKnownManifest = `{
  "name": "Caseline",
  "description": "Multi-tenant test case management backend",
  "version": "0.1.0",
  "api_base": "/api/v1",
  "auth": {
    "type": "bearer",
    "header": "Authorization",
    "schemes": ["jwt", "personal_access_token"]
  },
  "endpoints": {
    "register": "/api/v1/auth/register",
    "login": "/api/v1/auth/login",
    "groups": "/api/v1/groups",
    "tokens": "/api/v1/tokens",
    "invitations_accept": "/api/v1/invitations/accept"
  },
  "health": "/health",
  "metrics": "/metrics"
}`

// WellKnownHandler returns the static Caseline well-known manifest.
func WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wellKnownManifest))
}
