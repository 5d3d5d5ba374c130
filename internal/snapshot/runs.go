package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one invocation of an import or report pipeline.
type Run struct {
	ID          string
	Kind        string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Detail      string
}

// CreateRun records the start of a pipeline run of the given kind.
func (s *Store) CreateRun(ctx context.Context, kind string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("kind", kind))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO libstats_runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Kind, string(run.Status), run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished. A non-nil runErr marks it failed.
func (s *Store) CompleteRun(ctx context.Context, id string, runErr error, detail string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	status := RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE libstats_runs SET status = ?, completed_at = ?, error = ?, detail = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), errMsg, detail, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// LatestRun returns the most recent run of kind, or nil if there is none.
func (s *Store) LatestRun(ctx context.Context, kind string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run := &Run{}
	var status, started string
	var completed, errMsg, detail sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, started_at, completed_at, error, detail
		 FROM libstats_runs WHERE kind = ? ORDER BY started_at DESC LIMIT 1`,
		kind,
	).Scan(&run.ID, &run.Kind, &status, &started, &completed, &errMsg, &detail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("invalid run start time %q: %w", started, err)
	}
	if completed.Valid {
		t, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, fmt.Errorf("invalid run completion time %q: %w", completed.String, err)
		}
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	run.Detail = detail.String
	return run, nil
}
