package milestone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a milestone does not exist.
var ErrNotFound = errors.New("milestone not found")

// Milestone is a project-scoped delivery target that test runs can attach to.
type Milestone struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Name      string     `json:"name"`
	DueDate   *time.Time `json:"due_date"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateMilestoneInput is the payload for creating a milestone.
type CreateMilestoneInput struct {
	Name    string     `json:"name"`
	DueDate *time.Time `json:"due_date"`
}

// UpdateMilestoneInput is the payload for updating a milestone. Nil fields
// are left unchanged.
type UpdateMilestoneInput struct {
	Name      *string    `json:"name"`
	DueDate   *time.Time `json:"due_date"`
	Completed *bool      `json:"completed"`
}

// Store provides database operations for milestones.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new milestone store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a milestone into a project.
func (s *Store) Create(ctx context.Context, projectID string, in CreateMilestoneInput) (*Milestone, error) {
	m := &Milestone{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO milestones (project_id, name, due_date)
		 VALUES ($1, $2, $3)
		 RETURNING id, project_id, name, due_date, completed, created_at`,
		projectID, in.Name, in.DueDate,
	).Scan(&m.ID, &m.ProjectID, &m.Name, &m.DueDate, &m.Completed, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating milestone: %w", err)
	}
	return m, nil
}

// GetByID retrieves a milestone by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Milestone, error) {
	m := &Milestone{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, name, due_date, completed, created_at
		 FROM milestones WHERE id = $1`, id,
	).Scan(&m.ID, &m.ProjectID, &m.Name, &m.DueDate, &m.Completed, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting milestone by id: %w", err)
	}
	return m, nil
}

// ListForProject returns all milestones in a project, soonest due first with
// undated ones last.
func (s *Store) ListForProject(ctx context.Context, projectID string) ([]*Milestone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, due_date, completed, created_at
		 FROM milestones WHERE project_id = $1
		 ORDER BY due_date ASC NULLS LAST, created_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*Milestone
	for rows.Next() {
		m := &Milestone{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.DueDate, &m.Completed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning milestone row: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// Update applies partial changes to a milestone.
func (s *Store) Update(ctx context.Context, id string, in UpdateMilestoneInput) (*Milestone, error) {
	m := &Milestone{}
	err := s.pool.QueryRow(ctx,
		`UPDATE milestones
		 SET name = COALESCE($2, name),
		     due_date = COALESCE($3, due_date),
		     completed = COALESCE($4, completed)
		 WHERE id = $1
		 RETURNING id, project_id, name, due_date, completed, created_at`,
		id, in.Name, in.DueDate, in.Completed,
	).Scan(&m.ID, &m.ProjectID, &m.Name, &m.DueDate, &m.Completed, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating milestone: %w", err)
	}
	return m, nil
}

// Delete removes a milestone. Runs referencing it keep running with the
// reference cleared by the schema.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting milestone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
