package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("project not found")

// Store provides database operations for projects.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new project store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a project into a group.
func (s *Store) Create(ctx context.Context, groupID string, in CreateProjectInput) (*Project, error) {
	p := &Project{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (group_id, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, group_id, name, description, created_at, updated_at`,
		groupID, in.Name, in.Description,
	).Scan(&p.ID, &p.GroupID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return p, nil
}

// GetByID retrieves a project by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, name, description, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.GroupID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project by id: %w", err)
	}
	return p, nil
}

// ListForGroup returns all projects in a group, newest first.
func (s *Store) ListForGroup(ctx context.Context, groupID string) ([]*Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_id, name, description, created_at, updated_at
		 FROM projects WHERE group_id = $1
		 ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update applies partial changes to a project.
func (s *Store) Update(ctx context.Context, id string, in UpdateProjectInput) (*Project, error) {
	p := &Project{}
	err := s.pool.QueryRow(ctx,
		`UPDATE projects
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING id, group_id, name, description, created_at, updated_at`,
		id, in.Name, in.Description,
	).Scan(&p.ID, &p.GroupID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return p, nil
}

// Delete removes a project and everything hanging off it (the schema
// cascades suites, cases, runs, results, milestones, and the Jira binding).
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
