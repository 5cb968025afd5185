package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for run and result operations.
var (
	ErrRunNotFound    = errors.New("test run not found")
	ErrRunClosed      = errors.New("test run is closed")
	ErrResultNotFound = errors.New("test result not found")
)

// Store provides database operations for test runs and results.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new run store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts an OPEN run into a project.
func (s *Store) Create(ctx context.Context, projectID, createdBy string, in CreateRunInput) (*Run, error) {
	r := &Run{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO test_runs (project_id, title, milestone_id, status, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, project_id, title, milestone_id, status, created_by, created_at, closed_at`,
		projectID, in.Title, in.MilestoneID, StatusOpen, createdBy,
	).Scan(&r.ID, &r.ProjectID, &r.Title, &r.MilestoneID, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return r, nil
}

// GetByID retrieves a run by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, title, milestone_id, status, created_by, created_at, closed_at
		 FROM test_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.ProjectID, &r.Title, &r.MilestoneID, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("getting run by id: %w", err)
	}
	return r, nil
}

// ListForProject returns all runs in a project, newest first.
func (s *Store) ListForProject(ctx context.Context, projectID string) ([]*Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, title, milestone_id, status, created_by, created_at, closed_at
		 FROM test_runs WHERE project_id = $1
		 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title, &r.MilestoneID, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ClosedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close transitions an OPEN run to CLOSED, freezing its results. Closing an
// already-closed run is a no-op success.
func (s *Store) Close(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	err := s.pool.QueryRow(ctx,
		`UPDATE test_runs
		 SET status = $2, closed_at = COALESCE(closed_at, now())
		 WHERE id = $1
		 RETURNING id, project_id, title, milestone_id, status, created_by, created_at, closed_at`,
		id, StatusClosed,
	).Scan(&r.ID, &r.ProjectID, &r.Title, &r.MilestoneID, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("closing run: %w", err)
	}
	return r, nil
}

// Delete removes a run and its results (cascaded by the schema).
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM test_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// --- results ---

// RecordResult upserts the outcome for a (run, case) pair; the latest write
// wins. Recording against a CLOSED run is refused.
func (s *Store) RecordResult(ctx context.Context, runID, executedBy string, in RecordResultInput) (*Result, error) {
	r, err := s.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusClosed {
		return nil, ErrRunClosed
	}

	res := &Result{}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO test_results (run_id, case_id, status, comment, executed_by, executed_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (run_id, case_id)
		 DO UPDATE SET status = EXCLUDED.status,
		               comment = EXCLUDED.comment,
		               executed_by = EXCLUDED.executed_by,
		               executed_at = now()
		 RETURNING id, run_id, case_id, status, comment, executed_by, executed_at`,
		runID, in.CaseID, in.Status, in.Comment, executedBy,
	).Scan(&res.ID, &res.RunID, &res.CaseID, &res.Status, &res.Comment, &res.ExecutedBy, &res.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("recording result: %w", err)
	}
	return res, nil
}

// ListResults returns all results in a run, most recently executed first.
func (s *Store) ListResults(ctx context.Context, runID string) ([]*Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, case_id, status, comment, executed_by, executed_at
		 FROM test_results WHERE run_id = $1
		 ORDER BY executed_at DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		res := &Result{}
		if err := rows.Scan(&res.ID, &res.RunID, &res.CaseID, &res.Status, &res.Comment, &res.ExecutedBy, &res.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListFailed returns the FAILED results in a run, used to create Jira issues.
func (s *Store) ListFailed(ctx context.Context, runID string) ([]*Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, case_id, status, comment, executed_by, executed_at
		 FROM test_results WHERE run_id = $1 AND status = $2
		 ORDER BY executed_at ASC`,
		runID, ResultFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("listing failed results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		res := &Result{}
		if err := rows.Scan(&res.ID, &res.RunID, &res.CaseID, &res.Status, &res.Comment, &res.ExecutedBy, &res.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Summarize counts results per outcome for a run.
func (s *Store) Summarize(ctx context.Context, runID string) (*Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM test_results WHERE run_id = $1 GROUP BY status`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing run: %w", err)
	}
	defer rows.Close()

	sum := &Summary{}
	for rows.Next() {
		var status ResultStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		switch status {
		case ResultPassed:
			sum.Passed = count
		case ResultFailed:
			sum.Failed = count
		case ResultBlocked:
			sum.Blocked = count
		case ResultSkipped:
			sum.Skipped = count
		case ResultUntested:
			sum.Untested = count
		}
	}
	return sum, rows.Err()
}
