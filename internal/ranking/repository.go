package ranking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"traders-server/internal/shared/database"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing ranking repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Leaders reads the limit best scoring ships that are still flying and
// numbers them from 1.
func (r *Repository) Leaders(ctx context.Context, limit int, tx *database.Tx) ([]Entry, error) {
	logger := r.logger.With("component", "ranking_repository", "operation", "leaders", "limit", limit)

	query := `
		SELECT id, name, score, credits, fighters, team
		FROM ships
		WHERE NOT destroyed
		ORDER BY score DESC, id
		LIMIT $1
	`
	entries, err := r.queryEntries(ctx, r.getExecutor(tx), logger, query, false, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Replace swaps the whole rankings table for entries.
func (r *Repository) Replace(ctx context.Context, entries []Entry, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ranking_repository", "operation", "replace", "count", len(entries))

	if _, err := exec.ExecContext(ctx, `DELETE FROM rankings`); err != nil {
		logger.Error("Failed to clear rankings", "error", err)
		return fmt.Errorf("failed to clear rankings: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		logger.Error("Failed to marshal rankings", "error", err)
		return fmt.Errorf("failed to marshal rankings: %w", err)
	}

	query := `
		INSERT INTO rankings (rank, ship_id, name, score, credits, fighters, team)
		SELECT
			(data->>'rank')::integer,
			(data->>'ship_id')::integer,
			data->>'name',
			(data->>'score')::bigint,
			(data->>'credits')::bigint,
			(data->>'fighters')::bigint,
			(data->>'team')::integer
		FROM json_array_elements($1::json) AS data
	`
	if _, err := exec.ExecContext(ctx, query, string(payload)); err != nil {
		logger.Error("Failed to insert rankings", "error", err)
		return fmt.Errorf("failed to insert rankings: %w", err)
	}

	logger.Debug("Rankings replaced")
	return nil
}

// Top reads the stored rankings table.
func (r *Repository) Top(ctx context.Context, limit int) ([]Entry, error) {
	logger := r.logger.With("component", "ranking_repository", "operation", "top", "limit", limit)

	query := `
		SELECT rank, ship_id, name, score, credits, fighters, team
		FROM rankings
		ORDER BY rank
		LIMIT $1
	`
	return r.queryEntries(ctx, r.db, logger, query, true, limit)
}

func (r *Repository) queryEntries(ctx context.Context, exec database.Executor, logger *slog.Logger, query string, withRank bool, args ...any) ([]Entry, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query rankings", "error", err)
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		dest := []any{&e.ShipID, &e.Name, &e.Score, &e.Credits, &e.Fighters, &e.Team}
		if withRank {
			dest = append([]any{&e.Rank}, dest...)
		}
		if err := rows.Scan(dest...); err != nil {
			logger.Error("Failed to scan ranking row", "error", err)
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating rankings: %w", err)
	}
	return entries, nil
}

func (r *Repository) SaveSnapshot(ctx context.Context, s *Snapshot, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ranking_repository", "operation", "save_snapshot", "run_id", s.RunID)

	query := `
		INSERT INTO ranking_snapshots (run_id, entry_count, raw_size, payload, digest, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := exec.QueryRowContext(ctx, query, s.RunID, s.EntryCount, s.RawSize, s.Payload, s.Digest, s.TakenAt).Scan(&s.ID)
	if err != nil {
		logger.Error("Failed to save ranking snapshot", "error", err)
		return fmt.Errorf("failed to save ranking snapshot: %w", err)
	}

	logger.Debug("Ranking snapshot saved", "snapshot_id", s.ID, "compressed", len(s.Payload), "raw", s.RawSize)
	return nil
}

// LatestSnapshot returns nil when nothing has been archived yet.
func (r *Repository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	logger := r.logger.With("component", "ranking_repository", "operation", "latest_snapshot")

	query := `
		SELECT id, run_id, entry_count, raw_size, payload, digest, taken_at
		FROM ranking_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`
	var s Snapshot
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.RunID, &s.EntryCount, &s.RawSize, &s.Payload, &s.Digest, &s.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("No ranking snapshot yet")
			return nil, nil
		}
		logger.Error("Failed to load ranking snapshot", "error", err)
		return nil, fmt.Errorf("failed to load ranking snapshot: %w", err)
	}
	return &s, nil
}

// DeleteOlderThan prunes archived snapshots taken before cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ranking_repository", "operation", "delete_older_than", "cutoff", cutoff)

	result, err := exec.ExecContext(ctx, `DELETE FROM ranking_snapshots WHERE taken_at < $1`, cutoff)
	if err != nil {
		logger.Error("Failed to prune ranking snapshots", "error", err)
		return 0, fmt.Errorf("failed to prune ranking snapshots: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}
