package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"traders-server/internal/ranking"
	"traders-server/internal/shared/errors"
)

type fakeRankings struct {
	gotLimit int
}

func (f *fakeRankings) Top(ctx context.Context, limit int) ([]ranking.Entry, error) {
	f.gotLimit = limit
	return nil, nil
}

func (f *fakeRankings) LatestSnapshot(ctx context.Context) (*ranking.Snapshot, []ranking.Entry, error) {
	return nil, nil, errors.NotFoundf("no ranking snapshot has been taken yet")
}

func TestRankings(t *testing.T) {
	rankings := &fakeRankings{}
	h := NewRankingHandler(rankings)

	rec := httptest.NewRecorder()
	h.Top(rec, httptest.NewRequest(http.MethodGet, "/api/rankings?limit=5", nil))
	if rec.Code != http.StatusOK || rankings.gotLimit != 5 {
		t.Fatalf("status = %d limit = %d", rec.Code, rankings.gotLimit)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty leaderboard body = %s, want []", got)
	}

	rec = httptest.NewRecorder()
	h.Top(rec, httptest.NewRequest(http.MethodGet, "/api/rankings?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.LatestSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/rankings/snapshot", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("snapshot status = %d, want 404", rec.Code)
	}
}
