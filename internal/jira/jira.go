package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Binding connects a project to a Jira site. The API token is stored
// encrypted and never serialized.
type Binding struct {
	ProjectID  string    `json:"project_id"`
	SiteURL    string    `json:"site_url"`
	UserEmail  string    `json:"user_email"`
	APIToken   string    `json:"-"`
	ProjectKey string    `json:"project_key"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Issue is a Jira issue to be created from a failed test result.
type Issue struct {
	Summary     string
	Description string
	IssueType   string
}

// CreatedIssue is the upstream response for a created issue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// MetricsRecorder is an optional interface for recording outbound request
// metrics.
type MetricsRecorder interface {
	IncJiraRequest(operation string, statusCode int)
	IncJiraError(errorType string)
	ObserveJiraDuration(operation string, seconds float64)
}

// UpstreamError reports a non-2xx response from the Jira API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("jira returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Jira Cloud REST API using a per-project binding.
type Client struct {
	client  *http.Client
	metrics MetricsRecorder
}

// NewClient creates a Jira client with the given upstream timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{Timeout: timeout},
	}
}

// SetMetrics sets the optional metrics recorder.
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// CreateIssue creates an issue in the bound Jira project and returns the
// created issue key.
func (c *Client) CreateIssue(ctx context.Context, b *Binding, issue Issue) (*CreatedIssue, error) {
	issueType := issue.IssueType
	if issueType == "" {
		issueType = "Bug"
	}

	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":   map[string]string{"key": b.ProjectKey},
			"summary":   issue.Summary,
			"issuetype": map[string]string{"name": issueType},
			"description": map[string]interface{}{
				"type":    "doc",
				"version": 1,
				"content": []map[string]interface{}{
					{
						"type": "paragraph",
						"content": []map[string]string{
							{"type": "text", "text": issue.Description},
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding issue: %w", err)
	}

	url := b.SiteURL + "/rest/api/3/issue"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(b.UserEmail, b.APIToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)

	if c.metrics != nil {
		c.metrics.ObserveJiraDuration("create_issue", latency.Seconds())
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.IncJiraError(classifyUpstreamError(err))
		}
		return nil, fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.IncJiraRequest("create_issue", resp.StatusCode)
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.IncJiraError("status")
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var created CreatedIssue
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &created, nil
}

// CheckConnection verifies the binding credentials by fetching the bound
// project from the Jira API.
func (c *Client) CheckConnection(ctx context.Context, b *Binding) error {
	url := b.SiteURL + "/rest/api/3/project/" + b.ProjectKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(b.UserEmail, b.APIToken)

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)

	if c.metrics != nil {
		c.metrics.ObserveJiraDuration("check_connection", latency.Seconds())
	}

	if err != nil {
		if c.metrics != nil {
			c.metrics.IncJiraError(classifyUpstreamError(err))
		}
		return fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.IncJiraRequest("check_connection", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// classifyUpstreamError categorizes an upstream HTTP client error.
func classifyUpstreamError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Op == "dial" {
			return "connection_refused"
		}
		return "network"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	return "other"
}
