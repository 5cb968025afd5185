package testcase

import "time"

// Priority orders test cases by importance.
type Priority string

// Valid priorities.
const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Suite groups related test cases within a project.
type Suite struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Step is one action in a test case with its expected outcome.
type Step struct {
	Action   string `json:"action"`
	Expected string `json:"expected"`
}

// Case is a single test case within a suite.
type Case struct {
	ID             string    `json:"id"`
	SuiteID        string    `json:"suite_id"`
	Title          string    `json:"title"`
	Preconditions  string    `json:"preconditions"`
	Steps          []Step    `json:"steps"`
	ExpectedResult string    `json:"expected_result"`
	Priority       Priority  `json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateSuiteInput is the payload for creating a suite.
type CreateSuiteInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateSuiteInput is the payload for updating a suite. Nil fields are left
// unchanged.
type UpdateSuiteInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CreateCaseInput is the payload for creating a test case.
type CreateCaseInput struct {
	Title          string   `json:"title"`
	Preconditions  string   `json:"preconditions"`
	Steps          []Step   `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       Priority `json:"priority"`
}

// UpdateCaseInput is the payload for updating a test case. Nil fields are
// left unchanged; a non-nil Steps replaces the whole list.
type UpdateCaseInput struct {
	Title          *string   `json:"title"`
	Preconditions  *string   `json:"preconditions"`
	Steps          *[]Step   `json:"steps"`
	ExpectedResult *string   `json:"expected_result"`
	Priority       *Priority `json:"priority"`
}
