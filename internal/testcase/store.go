package testcase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Not-found sentinels for the two entity kinds managed here.
var (
	ErrSuiteNotFound = errors.New("test suite not found")
	ErrCaseNotFound  = errors.New("test case not found")
)

// Store provides database operations for test suites and test cases.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- suites ---

// CreateSuite inserts a suite into a project.
func (s *Store) CreateSuite(ctx context.Context, projectID string, in CreateSuiteInput) (*Suite, error) {
	su := &Suite{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO test_suites (project_id, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, project_id, name, description, created_at, updated_at`,
		projectID, in.Name, in.Description,
	).Scan(&su.ID, &su.ProjectID, &su.Name, &su.Description, &su.CreatedAt, &su.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating suite: %w", err)
	}
	return su, nil
}

// GetSuite retrieves a suite by primary key.
func (s *Store) GetSuite(ctx context.Context, id string) (*Suite, error) {
	su := &Suite{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, name, description, created_at, updated_at
		 FROM test_suites WHERE id = $1`, id,
	).Scan(&su.ID, &su.ProjectID, &su.Name, &su.Description, &su.CreatedAt, &su.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSuiteNotFound
		}
		return nil, fmt.Errorf("getting suite by id: %w", err)
	}
	return su, nil
}

// ListSuites returns all suites in a project, oldest first.
func (s *Store) ListSuites(ctx context.Context, projectID string) ([]*Suite, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, description, created_at, updated_at
		 FROM test_suites WHERE project_id = $1
		 ORDER BY created_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing suites: %w", err)
	}
	defer rows.Close()

	var suites []*Suite
	for rows.Next() {
		su := &Suite{}
		if err := rows.Scan(&su.ID, &su.ProjectID, &su.Name, &su.Description, &su.CreatedAt, &su.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning suite row: %w", err)
		}
		suites = append(suites, su)
	}
	return suites, rows.Err()
}

// UpdateSuite applies partial changes to a suite.
func (s *Store) UpdateSuite(ctx context.Context, id string, in UpdateSuiteInput) (*Suite, error) {
	su := &Suite{}
	err := s.pool.QueryRow(ctx,
		`UPDATE test_suites
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING id, project_id, name, description, created_at, updated_at`,
		id, in.Name, in.Description,
	).Scan(&su.ID, &su.ProjectID, &su.Name, &su.Description, &su.CreatedAt, &su.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSuiteNotFound
		}
		return nil, fmt.Errorf("updating suite: %w", err)
	}
	return su, nil
}

// DeleteSuite removes a suite and its cases (cascaded by the schema).
func (s *Store) DeleteSuite(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM test_suites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting suite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSuiteNotFound
	}
	return nil
}

// --- cases ---

// CreateCase inserts a test case into a suite. Steps are stored as JSONB.
func (s *Store) CreateCase(ctx context.Context, suiteID string, in CreateCaseInput) (*Case, error) {
	steps, err := marshalSteps(in.Steps)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO test_cases (suite_id, title, preconditions, steps, expected_result, priority)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, suite_id, title, preconditions, steps, expected_result, priority, created_at, updated_at`,
		suiteID, in.Title, in.Preconditions, steps, in.ExpectedResult, in.Priority,
	)
	return scanCase(row)
}

// GetCase retrieves a test case by primary key.
func (s *Store) GetCase(ctx context.Context, id string) (*Case, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, suite_id, title, preconditions, steps, expected_result, priority, created_at, updated_at
		 FROM test_cases WHERE id = $1`, id,
	)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListCases returns all cases in a suite, oldest first.
func (s *Store) ListCases(ctx context.Context, suiteID string) ([]*Case, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, suite_id, title, preconditions, steps, expected_result, priority, created_at, updated_at
		 FROM test_cases WHERE suite_id = $1
		 ORDER BY created_at ASC`,
		suiteID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// UpdateCase applies partial changes to a test case.
func (s *Store) UpdateCase(ctx context.Context, id string, in UpdateCaseInput) (*Case, error) {
	var steps []byte
	if in.Steps != nil {
		encoded, err := marshalSteps(*in.Steps)
		if err != nil {
			return nil, err
		}
		steps = encoded
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE test_cases
		 SET title = COALESCE($2, title),
		     preconditions = COALESCE($3, preconditions),
		     steps = COALESCE($4, steps),
		     expected_result = COALESCE($5, expected_result),
		     priority = COALESCE($6, priority),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING id, suite_id, title, preconditions, steps, expected_result, priority, created_at, updated_at`,
		id, in.Title, in.Preconditions, steps, in.ExpectedResult, in.Priority,
	)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

// DeleteCase removes a test case.
func (s *Store) DeleteCase(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func marshalSteps(steps []Step) ([]byte, error) {
	if steps == nil {
		steps = []Step{}
	}
	encoded, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encoding steps: %w", err)
	}
	return encoded, nil
}

func scanCase(row pgx.Row) (*Case, error) {
	c := &Case{}
	var steps []byte
	err := row.Scan(&c.ID, &c.SuiteID, &c.Title, &c.Preconditions, &steps, &c.ExpectedResult, &c.Priority, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &c.Steps); err != nil {
			return nil, fmt.Errorf("decoding steps: %w", err)
		}
	}
	return c, nil
}
