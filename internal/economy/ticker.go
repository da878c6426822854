package economy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"

	"github.com/google/uuid"
)

// Run is the context handed to a task body.
type Run struct {
	ID        uuid.UUID
	Task      string
	Intervals int64
	Now       time.Time

	afterCommit []func(context.Context)
}

// AfterCommit schedules fn to run once the task transaction has committed.
func (r *Run) AfterCommit(fn func(context.Context)) {
	r.afterCommit = append(r.afterCommit, fn)
}

// Runner is the body of a task. It returns a short summary for the audit
// trail.
type Runner func(ctx context.Context, run *Run, tx *database.Tx) (string, error)

// SchedulerStore persists task markers and run records.
type SchedulerStore interface {
	ListTasks(ctx context.Context) ([]TaskState, error)
	Advance(ctx context.Context, name string, prev, next time.Time, tx *database.Tx) (bool, error)
	RecordRun(ctx context.Context, rec RunRecord, tx *database.Tx) error
}

// TaskResult describes one task executed by RunDueTasks.
type TaskResult struct {
	Task      string    `json:"task"`
	RunID     uuid.UUID `json:"run_id"`
	Intervals int64     `json:"intervals"`
	Owed      int64     `json:"owed"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Report struct {
	Ran     []TaskResult `json:"ran"`
	Failed  []TaskResult `json:"failed"`
	Skipped []string     `json:"skipped"`
}

type Ticker struct {
	db      database.TxRunner
	store   SchedulerStore
	runners map[string]Runner
	cfg     *config.GameConfig
	logger  *slog.Logger
	newID   func() uuid.UUID

	// Requests arriving while a pass is underway skip their own pass.
	running sync.Mutex
}

func NewTicker(db database.TxRunner, store SchedulerStore, cfg *config.GameConfig, logger *slog.Logger) *Ticker {
	logger.Debug("Initializing economy ticker")

	return &Ticker{
		db:      db,
		store:   store,
		runners: make(map[string]Runner),
		cfg:     cfg,
		logger:  logger,
		newID:   uuid.New,
	}
}

// Register binds a runner to a task name.
func (t *Ticker) Register(task string, runner Runner) {
	t.runners[task] = runner
}

// RunDueTasks runs every task whose period has elapsed since its marker.
// Each task claims its intervals with a compare-and-swap on the marker and
// runs in its own transaction, so concurrent callers never run a task twice
// for the same intervals and a failing task does not affect the others.
func (t *Ticker) RunDueTasks(ctx context.Context, now time.Time) (*Report, error) {
	logger := t.logger.With("component", "economy_ticker", "operation", "run_due_tasks")
	report := &Report{}

	if !t.running.TryLock() {
		logger.Debug("Pass already running in this process")
		return report, nil
	}
	defer t.running.Unlock()

	states, err := t.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler tasks: %w", err)
	}
	byName := make(map[string]TaskState, len(states))
	for _, s := range states {
		byName[s.Name] = s
	}

	for _, task := range config.TaskOrder {
		state, ok := byName[task]
		runner, registered := t.runners[task]
		if !ok || !registered || state.Period <= 0 {
			continue
		}

		owed := int64(now.Sub(state.LastRunAt) / state.Period)
		if owed < 1 {
			continue
		}

		result, claimed, err := t.runTask(ctx, state, runner, owed, now)
		switch {
		case err != nil:
			result.Error = err.Error()
			report.Failed = append(report.Failed, result)
			logger.Error("Scheduler task failed", "task", task, "intervals", result.Intervals, "error", err)
			t.recordFailure(ctx, result, now)
		case !claimed:
			report.Skipped = append(report.Skipped, task)
			logger.Debug("Scheduler task claimed elsewhere", "task", task)
		default:
			report.Ran = append(report.Ran, result)
			logger.Info("Scheduler task completed", "task", task, "intervals", result.Intervals, "owed", owed, "message", result.Message)
		}
	}

	return report, nil
}

func (t *Ticker) runTask(ctx context.Context, state TaskState, runner Runner, owed int64, now time.Time) (TaskResult, bool, error) {
	run := &Run{
		ID:        t.newID(),
		Task:      state.Name,
		Intervals: min(owed, t.cfg.Scheduler.MaxCatchUp),
		Now:       now,
	}
	result := TaskResult{Task: state.Name, RunID: run.ID, Intervals: run.Intervals, Owed: owed}

	// The marker advances by every owed interval, including those beyond the
	// catch-up cap, so skipped intervals are dropped rather than owed again.
	next := state.LastRunAt.Add(time.Duration(owed) * state.Period)

	claimed := false
	err := t.db.WithTx(ctx, func(tx *database.Tx) error {
		run.afterCommit = nil

		ok, err := t.store.Advance(ctx, state.Name, state.LastRunAt, next, tx)
		if err != nil {
			return err
		}
		claimed = ok
		if !ok {
			return nil
		}

		message, err := runner(ctx, run, tx)
		if err != nil {
			return err
		}
		result.Message = message

		return t.store.RecordRun(ctx, RunRecord{
			RunID:     run.ID,
			Task:      state.Name,
			Intervals: run.Intervals,
			Status:    StatusSucceeded,
			Message:   message,
			StartedAt: now,
		}, tx)
	})
	if err != nil {
		return result, false, err
	}

	if claimed {
		for _, fn := range run.afterCommit {
			fn(ctx)
		}
	}
	return result, claimed, nil
}

func (t *Ticker) recordFailure(ctx context.Context, result TaskResult, now time.Time) {
	err := t.store.RecordRun(ctx, RunRecord{
		RunID:     result.RunID,
		Task:      result.Task,
		Intervals: result.Intervals,
		Status:    StatusFailed,
		Message:   result.Error,
		StartedAt: now,
	}, nil)
	if err != nil {
		t.logger.Error("Failed to record failed tick run", "component", "economy_ticker", "task", result.Task, "error", err)
	}
}
