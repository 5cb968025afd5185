package run

import "time"

// Status is the lifecycle state of a test run.
type Status string

// Run states. Results can only be recorded while a run is OPEN.
const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ResultStatus is the outcome recorded for a single case within a run.
type ResultStatus string

// Result outcomes.
const (
	ResultPassed   ResultStatus = "PASSED"
	ResultFailed   ResultStatus = "FAILED"
	ResultBlocked  ResultStatus = "BLOCKED"
	ResultSkipped  ResultStatus = "SKIPPED"
	ResultUntested ResultStatus = "UNTESTED"
)

// Valid reports whether s is a known result status.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultPassed, ResultFailed, ResultBlocked, ResultSkipped, ResultUntested:
		return true
	}
	return false
}

// Run is a project-scoped execution of test cases, optionally attached to a
// milestone.
type Run struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	MilestoneID *string    `json:"milestone_id"`
	Status      Status     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// Result is the latest recorded outcome for a (run, case) pair.
type Result struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	CaseID     string       `json:"case_id"`
	Status     ResultStatus `json:"status"`
	Comment    string       `json:"comment"`
	ExecutedBy string       `json:"executed_by"`
	ExecutedAt time.Time    `json:"executed_at"`
}

// Summary counts results per outcome for a run.
type Summary struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Blocked  int `json:"blocked"`
	Skipped  int `json:"skipped"`
	Untested int `json:"untested"`
}

// CreateRunInput is the payload for creating a run.
type CreateRunInput struct {
	Title       string  `json:"title"`
	MilestoneID *string `json:"milestone_id"`
}

// RecordResultInput is the payload for recording a result.
type RecordResultInput struct {
	CaseID  string       `json:"case_id"`
	Status  ResultStatus `json:"status"`
	Comment string       `json:"comment"`
}
