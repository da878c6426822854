package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"traders-server/internal/ranking"
	"traders-server/internal/shared/errors"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"

	"github.com/google/uuid"
)

type RankingReader interface {
	Top(ctx context.Context, limit int) ([]ranking.Entry, error)
	LatestSnapshot(ctx context.Context) (*ranking.Snapshot, []ranking.Entry, error)
}

type RankingHandler struct {
	rankings RankingReader
}

func NewRankingHandler(rankings RankingReader) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

func (h *RankingHandler) Top(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "rankings")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(w, r, logger, errors.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.rankings.Top(r.Context(), limit)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if entries == nil {
		entries = []ranking.Entry{}
	}

	response.Success(w, http.StatusOK, entries)
}

type SnapshotResponse struct {
	ID      int64           `json:"id"`
	RunID   uuid.UUID       `json:"run_id"`
	TakenAt time.Time       `json:"taken_at"`
	Digest  string          `json:"digest"`
	Entries []ranking.Entry `json:"entries"`
}

func (h *RankingHandler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "rankings_snapshot")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	snap, entries, err := h.rankings.LatestSnapshot(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, SnapshotResponse{
		ID:      snap.ID,
		RunID:   snap.RunID,
		TakenAt: snap.TakenAt,
		Digest:  snap.HexDigest(),
		Entries: entries,
	})
}
