package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"traders-server/internal/auth"
	"traders-server/internal/economy"
	"traders-server/internal/shared/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

type fakeValidator struct{}

func (fakeValidator) Validate(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, fmt.Errorf("bad token")
	}
	return &auth.Claims{ShipID: 7}, nil
}

type fakeActivity struct {
	touched []int
}

func (f *fakeActivity) TouchLogin(ctx context.Context, shipID int) error {
	f.touched = append(f.touched, shipID)
	return nil
}

func TestJWTMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			activity := &fakeActivity{}
			var gotShip int
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, err := ShipID(r)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				gotShip = id
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/ship", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			NewJWTMiddleware(fakeValidator{}, activity).Middleware(next).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK {
				if gotShip != 7 || len(activity.touched) != 1 {
					t.Errorf("ship = %d, touched = %v", gotShip, activity.touched)
				}
			} else if len(activity.touched) != 0 {
				t.Errorf("activity recorded for rejected request")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 2})
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want two allowed then 429", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusNoContent {
		t.Errorf("other client status = %d, want 204", rec.Code)
	}

	frozen = frozen.Add(clientIdleTTL + time.Second)
	if removed := rl.sweep(); removed != 2 {
		t.Errorf("sweep removed %d clients, want 2", removed)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	h := NewRateLimiter(config.RateLimitConfig{Enabled: false, BurstSize: 0}).Middleware(okHandler)
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := getClientIP(req, false); got != "192.168.1.1" {
		t.Errorf("untrusted ip = %q", got)
	}
	if got := getClientIP(req, true); got != "203.0.113.9" {
		t.Errorf("proxied ip = %q", got)
	}
}

type fakeRunner struct {
	calls  int
	report *economy.Report
	err    error
}

func (f *fakeRunner) RunDueTasks(ctx context.Context, now time.Time) (*economy.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func TestTickMiddlewareThrottlesAndNeverFails(t *testing.T) {
	runner := &fakeRunner{report: &economy.Report{Failed: []economy.TaskResult{{Task: "ports", Error: "boom"}}}}
	m := NewTickMiddleware(runner, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	h := m.Middleware(okHandler)

	serve := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		return rec.Code
	}

	if code := serve(); code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", code)
	}
	serve()
	if runner.calls != 1 {
		t.Errorf("calls within interval = %d, want 1", runner.calls)
	}

	now = now.Add(time.Second)
	runner.err = fmt.Errorf("database down")
	if code := serve(); code != http.StatusNoContent {
		t.Fatalf("status after failed pass = %d, want 204", code)
	}
	if runner.calls != 2 {
		t.Errorf("calls = %d, want 2", runner.calls)
	}
}
