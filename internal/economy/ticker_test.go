package economy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"testing"
	"time"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
)

type fakeScheduler struct {
	markers map[string]time.Time
	periods map[string]time.Duration
	runs    []RunRecord
	stolen  map[string]bool
}

func newFakeScheduler(last time.Time, cfg *config.GameConfig) *fakeScheduler {
	f := &fakeScheduler{
		markers: make(map[string]time.Time),
		periods: make(map[string]time.Duration),
		stolen:  make(map[string]bool),
	}
	for name, minutes := range cfg.Scheduler.Periods {
		f.markers[name] = last
		f.periods[name] = time.Duration(minutes) * time.Minute
	}
	return f
}

func (f *fakeScheduler) ListTasks(ctx context.Context) ([]TaskState, error) {
	var out []TaskState
	for name, last := range f.markers {
		out = append(out, TaskState{Name: name, Period: f.periods[name], LastRunAt: last})
	}
	return out, nil
}

func (f *fakeScheduler) Advance(ctx context.Context, name string, prev, next time.Time, tx *database.Tx) (bool, error) {
	if f.stolen[name] || !f.markers[name].Equal(prev) {
		return false, nil
	}
	f.markers[name] = next
	return true, nil
}

func (f *fakeScheduler) RecordRun(ctx context.Context, rec RunRecord, tx *database.Tx) error {
	f.runs = append(f.runs, rec)
	return nil
}

// rollbackTx restores the scheduler markers when the transaction body fails.
type rollbackTx struct {
	store *fakeScheduler
}

func (r rollbackTx) WithTx(ctx context.Context, fn func(tx *database.Tx) error) error {
	saved := maps.Clone(r.store.markers)
	savedRuns := len(r.store.runs)
	if err := fn(nil); err != nil {
		r.store.markers = saved
		r.store.runs = r.store.runs[:savedRuns]
		return err
	}
	return nil
}

type recorder struct {
	calls map[string][]int64
	fail  map[string]bool
}

func (r *recorder) runner(task string) Runner {
	return func(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
		if r.fail[task] {
			return "", fmt.Errorf("%s exploded", task)
		}
		r.calls[task] = append(r.calls[task], run.Intervals)
		return "ok", nil
	}
}

func newTestTicker(store *fakeScheduler, cfg *config.GameConfig, rec *recorder) *Ticker {
	ticker := NewTicker(rollbackTx{store: store}, store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, task := range config.TaskOrder {
		ticker.Register(task, rec.runner(task))
	}
	return ticker
}

func TestRunDueTasksIsIdempotent(t *testing.T) {
	cfg := config.DefaultGameConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeScheduler(start, cfg)
	rec := &recorder{calls: make(map[string][]int64)}
	ticker := newTestTicker(store, cfg, rec)

	now := start.Add(7 * time.Minute)
	report, err := ticker.RunDueTasks(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 minute tasks owe 3 intervals, fighter decay (6 min) owes 1, rankings
	// and cleanup are not due yet.
	if got := rec.calls[config.TaskTurns]; len(got) != 1 || got[0] != 3 {
		t.Errorf("turns calls = %v, want [3]", got)
	}
	if got := rec.calls[config.TaskFighterDecay]; len(got) != 1 || got[0] != 1 {
		t.Errorf("fighter decay calls = %v, want [1]", got)
	}
	if _, ok := rec.calls[config.TaskRankings]; ok {
		t.Error("rankings ran before its period elapsed")
	}
	if len(report.Ran) != 6 || len(store.runs) != 6 {
		t.Errorf("ran %d tasks, recorded %d runs, want 6", len(report.Ran), len(store.runs))
	}
	if want := start.Add(6 * time.Minute); !store.markers[config.TaskTurns].Equal(want) {
		t.Errorf("turns marker = %v, want %v", store.markers[config.TaskTurns], want)
	}

	second, err := ticker.RunDueTasks(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Ran) != 0 || len(rec.calls[config.TaskTurns]) != 1 {
		t.Errorf("second pass ran %d tasks", len(second.Ran))
	}
}

func TestRunDueTasksCapsCatchUp(t *testing.T) {
	cfg := config.DefaultGameConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeScheduler(start, cfg)
	rec := &recorder{calls: make(map[string][]int64)}
	ticker := newTestTicker(store, cfg, rec)

	now := start.Add(2000 * 2 * time.Minute)
	report, err := ticker.RunDueTasks(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.calls[config.TaskPorts]; len(got) != 1 || got[0] != 720 {
		t.Errorf("ports intervals = %v, want [720]", got)
	}
	if !store.markers[config.TaskPorts].Equal(now) {
		t.Errorf("ports marker = %v, want %v", store.markers[config.TaskPorts], now)
	}
	for _, r := range report.Ran {
		if r.Task == config.TaskPorts && r.Owed != 2000 {
			t.Errorf("owed = %d, want 2000", r.Owed)
		}
	}
}

func TestRunDueTasksIsolatesFailures(t *testing.T) {
	cfg := config.DefaultGameConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeScheduler(start, cfg)
	rec := &recorder{calls: make(map[string][]int64), fail: map[string]bool{config.TaskPorts: true}}
	ticker := newTestTicker(store, cfg, rec)

	now := start.Add(2 * time.Minute)
	report, err := ticker.RunDueTasks(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Failed) != 1 || report.Failed[0].Task != config.TaskPorts {
		t.Fatalf("failed = %+v, want ports", report.Failed)
	}
	if !store.markers[config.TaskPorts].Equal(start) {
		t.Error("failed task marker advanced")
	}
	if len(rec.calls[config.TaskPlanets]) != 1 || len(rec.calls[config.TaskInterest]) != 1 {
		t.Error("tasks after the failure did not run")
	}

	var failedRecorded bool
	for _, r := range store.runs {
		if r.Task == config.TaskPorts && r.Status == StatusFailed {
			failedRecorded = true
		}
	}
	if !failedRecorded {
		t.Error("failed run not recorded")
	}

	delete(rec.fail, config.TaskPorts)
	if _, err := ticker.RunDueTasks(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.calls[config.TaskPorts]) != 1 {
		t.Error("failed task was not retried on the next pass")
	}
}

func TestRunDueTasksSkipsLostRace(t *testing.T) {
	cfg := config.DefaultGameConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeScheduler(start, cfg)
	store.stolen[config.TaskTurns] = true
	rec := &recorder{calls: make(map[string][]int64)}
	ticker := newTestTicker(store, cfg, rec)

	report, err := ticker.RunDueTasks(context.Background(), start.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ran := rec.calls[config.TaskTurns]; ran {
		t.Error("turns ran without winning the marker")
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != config.TaskTurns {
		t.Errorf("skipped = %v", report.Skipped)
	}
}

func TestAfterCommitRunsOnlyOnSuccess(t *testing.T) {
	cfg := config.DefaultGameConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeScheduler(start, cfg)
	ticker := NewTicker(rollbackTx{store: store}, store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var published []string
	ticker.Register(config.TaskTurns, func(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
		run.AfterCommit(func(context.Context) { published = append(published, "turns") })
		return "", nil
	})
	ticker.Register(config.TaskPorts, func(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
		run.AfterCommit(func(context.Context) { published = append(published, "ports") })
		return "", fmt.Errorf("boom")
	})

	if _, err := ticker.RunDueTasks(context.Background(), start.Add(2*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(published) != 1 || published[0] != "turns" {
		t.Errorf("published = %v, want [turns]", published)
	}
}
