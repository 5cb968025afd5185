package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateIssue(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreatedIssue{ID: "10001", Key: "QA-42", Self: r.Host})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	binding := &Binding{
		ProjectID:  "p1",
		SiteURL:    srv.URL,
		UserEmail:  "bot@example.com",
		APIToken:   "secret-token",
		ProjectKey: "QA",
	}

	created, err := c.CreateIssue(context.Background(), binding, Issue{
		Summary:     "Login test failed",
		Description: "Expected 200, got 500",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	if created.Key != "QA-42" {
		t.Errorf("expected issue key QA-42, got %q", created.Key)
	}
	if gotPath != "/rest/api/3/issue" {
		t.Errorf("expected path /rest/api/3/issue, got %q", gotPath)
	}
	if gotAuth == "" {
		t.Error("expected basic auth header")
	}

	fields, ok := gotPayload["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("payload missing fields object")
	}
	if fields["summary"] != "Login test failed" {
		t.Errorf("unexpected summary %v", fields["summary"])
	}
	project, _ := fields["project"].(map[string]interface{})
	if project["key"] != "QA" {
		t.Errorf("unexpected project key %v", project["key"])
	}
	issueType, _ := fields["issuetype"].(map[string]interface{})
	if issueType["name"] != "Bug" {
		t.Errorf("expected default issue type Bug, got %v", issueType["name"])
	}
}

func TestCreateIssueUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["field required"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	binding := &Binding{SiteURL: srv.URL, UserEmail: "bot@example.com", APIToken: "t", ProjectKey: "QA"}

	_, err := c.CreateIssue(context.Background(), binding, Issue{Summary: "x"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", upstream.StatusCode)
	}
}

func TestCheckConnection(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"bad credentials", http.StatusUnauthorized, true},
		{"unknown project", http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rest/api/3/project/QA" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(5 * time.Second)
			binding := &Binding{SiteURL: srv.URL, UserEmail: "bot@example.com", APIToken: "t", ProjectKey: "QA"}

			err := c.CheckConnection(context.Background(), binding)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	if got := classifyUpstreamError(context.DeadlineExceeded); got != "timeout" {
		t.Errorf("expected timeout, got %q", got)
	}
	if got := classifyUpstreamError(context.Canceled); got != "canceled" {
		t.Errorf("expected canceled, got %q", got)
	}
}
