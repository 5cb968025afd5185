package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/jira"
	"github.com/caseline/caseline/internal/milestone"
	"github.com/caseline/caseline/internal/pat"
	"github.com/caseline/caseline/internal/project"
	"github.com/caseline/caseline/internal/run"
	"github.com/caseline/caseline/internal/testcase"
	"github.com/caseline/caseline/internal/token"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// writeDomainError is the single translation point from domain sentinel
// errors to HTTP responses. Anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var forbidden *group.ForbiddenError
	if errors.As(err, &forbidden) {
		writeError(w, http.StatusForbidden, forbidden.Code, "insufficient role or membership")
		return
	}

	switch {
	case errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, group.ErrUserNotFound),
		errors.Is(err, group.ErrMembershipNotFound),
		errors.Is(err, group.ErrInviteNotFound),
		errors.Is(err, project.ErrNotFound),
		errors.Is(err, testcase.ErrSuiteNotFound),
		errors.Is(err, testcase.ErrCaseNotFound),
		errors.Is(err, milestone.ErrNotFound),
		errors.Is(err, run.ErrRunNotFound),
		errors.Is(err, run.ErrResultNotFound),
		errors.Is(err, pat.ErrNotFound),
		errors.Is(err, jira.ErrBindingNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, group.ErrPersonalGroup),
		errors.Is(err, group.ErrOwnerImmutable),
		errors.Is(err, run.ErrRunClosed):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())

	case errors.Is(err, group.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, pat.ErrNotOwner):
		writeError(w, http.StatusForbidden, "NOT_TOKEN_OWNER", "only the token owner may revoke it")

	case errors.Is(err, token.ErrInvalid):
		writeError(w, http.StatusUnauthorized, "unauthorized", "token invalid or expired")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
