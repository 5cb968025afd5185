package project

import "time"

// Project is a group-scoped container for test suites, runs, and milestones.
type Project struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProjectInput is the payload for creating a project.
type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateProjectInput is the payload for updating a project. Nil fields are
// left unchanged.
type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}
