package economy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"traders-server/internal/shared/database"

	"github.com/google/uuid"
)

// TaskState is the persisted marker of one scheduler task.
type TaskState struct {
	Name      string
	Period    time.Duration
	LastRunAt time.Time
}

// RunRecord is one row of the tick audit trail.
type RunRecord struct {
	RunID     uuid.UUID
	Task      string
	Intervals int64
	Status    string
	Message   string
	StartedAt time.Time
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type SchedulerRepository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewSchedulerRepository(db *database.DB, logger *slog.Logger) *SchedulerRepository {
	logger.Debug("Initializing scheduler repository")

	return &SchedulerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SchedulerRepository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// EnsureTasks creates missing task rows with their marker at now and keeps
// the stored periods in line with configuration.
func (r *SchedulerRepository) EnsureTasks(ctx context.Context, periods map[string]int, now time.Time) error {
	logger := r.logger.With("component", "scheduler_repository", "operation", "ensure_tasks", "count", len(periods))

	query := `
		INSERT INTO scheduler_tasks (name, period_minutes, last_run_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET period_minutes = EXCLUDED.period_minutes
	`
	for name, minutes := range periods {
		if _, err := r.db.ExecContext(ctx, query, name, minutes, now); err != nil {
			logger.Error("Failed to ensure scheduler task", "task", name, "error", err)
			return fmt.Errorf("failed to ensure scheduler task %s: %w", name, err)
		}
	}

	logger.Debug("Scheduler tasks ensured")
	return nil
}

func (r *SchedulerRepository) ListTasks(ctx context.Context) ([]TaskState, error) {
	logger := r.logger.With("component", "scheduler_repository", "operation", "list_tasks")

	rows, err := r.db.QueryContext(ctx, `SELECT name, period_minutes, last_run_at FROM scheduler_tasks ORDER BY name`)
	if err != nil {
		logger.Error("Failed to query scheduler tasks", "error", err)
		return nil, fmt.Errorf("failed to query scheduler tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var tasks []TaskState
	for rows.Next() {
		var t TaskState
		var minutes int
		if err := rows.Scan(&t.Name, &minutes, &t.LastRunAt); err != nil {
			logger.Error("Failed to scan scheduler task", "error", err)
			return nil, fmt.Errorf("failed to scan scheduler task: %w", err)
		}
		t.Period = time.Duration(minutes) * time.Minute
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating scheduler tasks: %w", err)
	}
	return tasks, nil
}

// Advance moves the marker of a task from prev to next. It reports false
// when the marker no longer equals prev, meaning another run claimed it.
func (r *SchedulerRepository) Advance(ctx context.Context, name string, prev, next time.Time, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "scheduler_repository", "operation", "advance", "task", name)

	result, err := exec.ExecContext(ctx,
		`UPDATE scheduler_tasks SET last_run_at = $3 WHERE name = $1 AND last_run_at = $2`,
		name, prev, next,
	)
	if err != nil {
		logger.Error("Failed to advance scheduler marker", "error", err)
		return false, fmt.Errorf("failed to advance scheduler marker: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// RecordRun appends to the tick audit trail. Failed runs are recorded with
// a nil tx so the entry survives the rollback of the task.
func (r *SchedulerRepository) RecordRun(ctx context.Context, rec RunRecord, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "scheduler_repository", "operation", "record_run", "task", rec.Task, "run_id", rec.RunID)

	query := `
		INSERT INTO tick_runs (run_id, task, intervals, status, message, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := exec.ExecContext(ctx, query, rec.RunID, rec.Task, rec.Intervals, rec.Status, rec.Message, rec.StartedAt); err != nil {
		logger.Error("Failed to record tick run", "error", err)
		return fmt.Errorf("failed to record tick run: %w", err)
	}
	return nil
}

func (r *SchedulerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "scheduler_repository", "operation", "delete_runs_older_than", "cutoff", cutoff)

	result, err := exec.ExecContext(ctx, `DELETE FROM tick_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		logger.Error("Failed to prune tick runs", "error", err)
		return 0, fmt.Errorf("failed to prune tick runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}
