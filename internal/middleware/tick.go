package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"traders-server/internal/economy"
)

// TaskRunner advances the scheduled economy.
type TaskRunner interface {
	RunDueTasks(ctx context.Context, now time.Time) (*economy.Report, error)
}

// TickMiddleware runs due economy tasks before the request is handled.
// Passes are attempted at most once per minInterval; a failing pass is logged
// and never fails the request.
type TickMiddleware struct {
	runner      TaskRunner
	minInterval time.Duration
	lastAttempt atomic.Int64
	now         func() time.Time
}

func NewTickMiddleware(runner TaskRunner, minInterval time.Duration) *TickMiddleware {
	return &TickMiddleware{
		runner:      runner,
		minInterval: minInterval,
		now:         time.Now,
	}
}

func (m *TickMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.tick(r.Context())
		next.ServeHTTP(w, r)
	})
}

func (m *TickMiddleware) tick(ctx context.Context) {
	now := m.now()
	if !m.claim(now) {
		return
	}

	logger := slog.With("middleware", "tick")

	// The pass outlives a client that disconnects mid-request.
	report, err := m.runner.RunDueTasks(context.WithoutCancel(ctx), now)
	if err != nil {
		logger.Error("Economy pass failed", "error", err)
		return
	}

	for _, failed := range report.Failed {
		logger.Warn("Economy task failed", "task", failed.Task, "run_id", failed.RunID, "error", failed.Error)
	}
	if len(report.Ran) > 0 {
		logger.Debug("Economy tasks ran", "ran", len(report.Ran), "failed", len(report.Failed))
	}
}

func (m *TickMiddleware) claim(now time.Time) bool {
	last := m.lastAttempt.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < m.minInterval {
		return false
	}
	return m.lastAttempt.CompareAndSwap(last, now.UnixNano())
}
