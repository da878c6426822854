package ranking

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Store interface {
	Leaders(ctx context.Context, limit int, tx *database.Tx) ([]Entry, error)
	Replace(ctx context.Context, entries []Entry, tx *database.Tx) error
	Top(ctx context.Context, limit int) ([]Entry, error)
	SaveSnapshot(ctx context.Context, s *Snapshot, tx *database.Tx) error
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// Cache holds a copy of the leaderboard. Load reports false on a miss.
type Cache interface {
	Load(ctx context.Context, limit int) ([]Entry, bool, error)
	Store(ctx context.Context, entries []Entry) error
}

type Service struct {
	repo   Store
	cache  Cache
	cfg    *config.GameConfig
	logger *slog.Logger
	reads  singleflight.Group

	// publishes counts Publish calls; a cache warm started under an older
	// count is dropped.
	publishMu sync.Mutex
	publishes uint64
}

// NewService builds the ranking service. cache may be nil, in which case
// every read goes to Postgres.
func NewService(repo Store, cache Cache, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing ranking service")

	return &Service{
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// Rebuild recomputes the top N, replaces the rankings table and archives a
// snapshot, all inside tx. The returned entries should be published once tx
// commits.
func (s *Service) Rebuild(ctx context.Context, runID uuid.UUID, now time.Time, tx *database.Tx) ([]Entry, error) {
	logger := s.logger.With("component", "ranking_service", "operation", "rebuild", "run_id", runID)

	entries, err := s.repo.Leaders(ctx, s.cfg.Rankings.TopN, tx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Replace(ctx, entries, tx); err != nil {
		return nil, err
	}

	snap, err := Pack(runID, entries, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveSnapshot(ctx, snap, tx); err != nil {
		return nil, err
	}

	logger.Info("Rankings rebuilt", "count", len(entries), "snapshot_id", snap.ID)
	return entries, nil
}

// Publish pushes entries to the cache. Failures only degrade reads.
func (s *Service) Publish(ctx context.Context, entries []Entry) {
	if s.cache == nil {
		return
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.publishes++
	if err := s.cache.Store(ctx, entries); err != nil {
		s.logger.Warn("Leaderboard cache not refreshed", "component", "ranking_service", "error", err)
	}
}

func (s *Service) publishCount() uint64 {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	return s.publishes
}

// warm stores entries read from Postgres unless a publish happened since the
// read started.
func (s *Service) warm(ctx context.Context, entries []Entry, readAt uint64, logger *slog.Logger) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if s.publishes != readAt {
		logger.Debug("Leaderboard published during read, not warming cache")
		return
	}
	if err := s.cache.Store(ctx, entries); err != nil {
		logger.Warn("Leaderboard cache not warmed", "error", err)
	}
}

// Top serves the leaderboard from the cache, falling back to Postgres and
// warming the cache on a miss.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	logger := s.logger.With("component", "ranking_service", "operation", "top", "limit", limit)

	if limit <= 0 || limit > s.cfg.Rankings.TopN {
		limit = s.cfg.Rankings.TopN
	}

	if s.cache != nil {
		entries, ok, err := s.cache.Load(ctx, limit)
		switch {
		case err != nil:
			logger.Warn("Leaderboard cache unavailable, reading Postgres", "error", err)
		case ok:
			logger.Debug("Leaderboard served from cache", "count", len(entries))
			return entries, nil
		}
	}

	// Concurrent misses for the same limit share one Postgres read.
	v, err, shared := s.reads.Do(strconv.Itoa(limit), func() (interface{}, error) {
		readAt := s.publishCount()
		entries, err := s.repo.Top(ctx, limit)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && len(entries) > 0 && limit == s.cfg.Rankings.TopN {
			s.warm(ctx, entries, readAt, logger)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Leaderboard read shared with a concurrent request")
	}
	return v.([]Entry), nil
}

// LatestSnapshot decodes the most recent archived leaderboard.
func (s *Service) LatestSnapshot(ctx context.Context) (*Snapshot, []Entry, error) {
	snap, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, errors.NotFoundf("no ranking snapshot has been taken yet")
	}

	entries, err := Unpack(snap)
	if err != nil {
		return nil, nil, errors.WrapInternal("ranking snapshot is unreadable", err)
	}
	return snap, entries, nil
}
