package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/jira"
	"github.com/caseline/caseline/internal/run"
)

// JiraStore is the binding persistence surface the handlers need.
type JiraStore interface {
	Upsert(ctx context.Context, b *jira.Binding) (*jira.Binding, error)
	GetByProject(ctx context.Context, projectID string) (*jira.Binding, error)
	Delete(ctx context.Context, projectID string) error
}

// JiraClient is the outbound Jira surface the handlers need.
type JiraClient interface {
	CreateIssue(ctx context.Context, b *jira.Binding, issue jira.Issue) (*jira.CreatedIssue, error)
	CheckConnection(ctx context.Context, b *jira.Binding) error
}

// FailedResultSource lists the FAILED results of a run for issue creation.
type FailedResultSource interface {
	ListFailed(ctx context.Context, runID string) ([]*run.Result, error)
}

// jiraHandler groups Jira binding and push HTTP handlers.
type jiraHandler struct {
	bindings JiraStore
	client   JiraClient
	failed   FailedResultSource
	cases    CaseLookup
	guard    *guard
}

func newJiraHandler(bindings JiraStore, client JiraClient, failed FailedResultSource, cases CaseLookup, guard *guard) *jiraHandler {
	return &jiraHandler{
		bindings: bindings,
		client:   client,
		failed:   failed,
		cases:    cases,
		guard:    guard,
	}
}

// PutBinding handles PUT /api/v1/projects/{projectID}/jira (MAINTAINER+).
// Credentials are verified against the Jira site before the binding is saved.
func (h *jiraHandler) PutBinding(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		SiteURL    string `json:"site_url"`
		UserEmail  string `json:"user_email"`
		APIToken   string `json:"api_token"`
		ProjectKey string `json:"project_key"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.SiteURL == "" || req.UserEmail == "" || req.APIToken == "" || req.ProjectKey == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error",
			"site_url, user_email, api_token, and project_key are required")
		return
	}

	b := &jira.Binding{
		ProjectID:  projectID,
		SiteURL:    strings.TrimRight(req.SiteURL, "/"),
		UserEmail:  req.UserEmail,
		APIToken:   req.APIToken,
		ProjectKey: req.ProjectKey,
	}

	if err := h.client.CheckConnection(r.Context(), b); err != nil {
		var upstream *jira.UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, http.StatusUnprocessableEntity, "jira_unreachable",
				fmt.Sprintf("jira rejected the credentials (status %d)", upstream.StatusCode))
			return
		}
		writeError(w, http.StatusBadGateway, "jira_unreachable", "could not reach the jira site")
		return
	}

	saved, err := h.bindings.Upsert(r.Context(), b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save jira binding")
		return
	}

	auditLog(r, "put_jira_binding", "jira_binding", projectID, "site_url", saved.SiteURL)
	writeJSON(w, http.StatusOK, saved)
}

// GetBinding handles GET /api/v1/projects/{projectID}/jira (MAINTAINER+). The
// API token is never included in the response.
func (h *jiraHandler) GetBinding(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	b, err := h.bindings.GetByProject(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBinding handles DELETE /api/v1/projects/{projectID}/jira
// (MAINTAINER+).
func (h *jiraHandler) DeleteBinding(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.guard.requireProjectRole(r.Context(), projectID, id.UserID, group.RoleMaintainer); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.bindings.Delete(r.Context(), projectID); err != nil {
		writeDomainError(w, err)
		return
	}

	auditLog(r, "delete_jira_binding", "jira_binding", projectID)
	w.WriteHeader(http.StatusNoContent)
}

// PushFailures handles POST /api/v1/runs/{runID}/push-failures (MEMBER+). One
// Jira issue is created per FAILED result in the run. Failures to create an
// individual issue are reported per result without aborting the batch.
func (h *jiraHandler) PushFailures(w http.ResponseWriter, r *http.Request) {
	id := requireIdentity(w, r)
	if id == nil {
		return
	}
	runID := chi.URLParam(r, "runID")

	tr, err := h.guard.requireRunRole(r.Context(), runID, id.UserID, group.RoleMember)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	b, err := h.bindings.GetByProject(r.Context(), tr.ProjectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	failed, err := h.failed.ListFailed(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list results")
		return
	}

	type pushed struct {
		CaseID   string `json:"case_id"`
		IssueKey string `json:"issue_key,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	created := make([]pushed, 0, len(failed))

	for _, res := range failed {
		title := res.CaseID
		if c, err := h.cases.GetCase(r.Context(), res.CaseID); err == nil {
			title = c.Title
		}

		desc := fmt.Sprintf("Test case %q failed in run %q.", title, tr.Title)
		if res.Comment != "" {
			desc += " Tester comment: " + res.Comment
		}

		issue, err := h.client.CreateIssue(r.Context(), b, jira.Issue{
			Summary:     "Test failure: " + title,
			Description: desc,
		})
		if err != nil {
			created = append(created, pushed{CaseID: res.CaseID, Error: err.Error()})
			continue
		}
		created = append(created, pushed{CaseID: res.CaseID, IssueKey: issue.Key})
	}

	auditLog(r, "push_failures", "test_run", runID, "project_id", tr.ProjectID, "failures", len(failed))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"issues": created,
	})
}
