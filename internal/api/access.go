package api

import (
	"context"

	"github.com/caseline/caseline/internal/group"
	"github.com/caseline/caseline/internal/milestone"
	"github.com/caseline/caseline/internal/project"
	"github.com/caseline/caseline/internal/run"
	"github.com/caseline/caseline/internal/testcase"
)

// Lookup interfaces used to resolve an entity back to its owning group for
// authorization. The concrete stores implement them; tests substitute
// in-memory versions.
type (
	ProjectLookup interface {
		GetByID(ctx context.Context, id string) (*project.Project, error)
	}
	SuiteLookup interface {
		GetSuite(ctx context.Context, id string) (*testcase.Suite, error)
	}
	CaseLookup interface {
		GetCase(ctx context.Context, id string) (*testcase.Case, error)
	}
	RunLookup interface {
		GetByID(ctx context.Context, id string) (*run.Run, error)
	}
	MilestoneLookup interface {
		GetByID(ctx context.Context, id string) (*milestone.Milestone, error)
	}
)

// guard resolves an entity to its owning group and enforces the caller's role
// there. Every entity under a group (project, suite, case, run, milestone)
// routes through here, so authorization lives in exactly one place.
type guard struct {
	checker    *group.Checker
	projects   ProjectLookup
	suites     SuiteLookup
	cases      CaseLookup
	runs       RunLookup
	milestones MilestoneLookup
}

// requireGroupRole enforces the caller's role directly on a group. RoleOwner
// uses the dedicated owner check so the failure code stays OWNER_ONLY.
func (g *guard) requireGroupRole(ctx context.Context, groupID, userID string, minRole group.Role) (*group.Membership, error) {
	if err := g.checker.RequireGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if minRole == group.RoleOwner {
		return g.checker.RequireOwner(ctx, groupID, userID)
	}
	return g.checker.RequireAtLeast(ctx, groupID, userID, minRole)
}

// requireProjectRole resolves a project and enforces the caller's role in its
// group.
func (g *guard) requireProjectRole(ctx context.Context, projectID, userID string, minRole group.Role) (*project.Project, error) {
	p, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireGroupRole(ctx, p.GroupID, userID, minRole); err != nil {
		return nil, err
	}
	return p, nil
}

// requireSuiteRole resolves a suite through its project.
func (g *guard) requireSuiteRole(ctx context.Context, suiteID, userID string, minRole group.Role) (*testcase.Suite, error) {
	su, err := g.suites.GetSuite(ctx, suiteID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireProjectRole(ctx, su.ProjectID, userID, minRole); err != nil {
		return nil, err
	}
	return su, nil
}

// requireCaseRole resolves a test case through its suite and project.
func (g *guard) requireCaseRole(ctx context.Context, caseID, userID string, minRole group.Role) (*testcase.Case, error) {
	c, err := g.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireSuiteRole(ctx, c.SuiteID, userID, minRole); err != nil {
		return nil, err
	}
	return c, nil
}

// requireRunRole resolves a run through its project.
func (g *guard) requireRunRole(ctx context.Context, runID, userID string, minRole group.Role) (*run.Run, error) {
	r, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireProjectRole(ctx, r.ProjectID, userID, minRole); err != nil {
		return nil, err
	}
	return r, nil
}

// requireMilestoneRole resolves a milestone through its project.
func (g *guard) requireMilestoneRole(ctx context.Context, milestoneID, userID string, minRole group.Role) (*milestone.Milestone, error) {
	m, err := g.milestones.GetByID(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireProjectRole(ctx, m.ProjectID, userID, minRole); err != nil {
		return nil, err
	}
	return m, nil
}
