// Package eventlog persists the audit trail of combat, movement and tick
// events.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"traders-server/internal/shared/database"
)

// Event kinds.
const (
	KindAttackShip   = "attack_ship"
	KindAttackPlanet = "attack_planet"
	KindDeploy       = "deploy_defense"
	KindRetrieve     = "retrieve_defense"
	KindMinefield    = "minefield"
	KindAmbush       = "fighter_ambush"
	KindTow          = "tow"
)

type Entry struct {
	Kind           string
	ShipID         int
	TargetShipID   *int
	TargetPlanetID *int
	SectorID       int
	Outcome        string
	Damage         int64
	Details        map[string]any
}

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing event log repository")

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

// Record appends an entry. It is written inside tx so a rolled back action
// leaves no trace.
func (r *Repository) Record(ctx context.Context, e Entry, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "eventlog_repository", "operation", "record", "kind", e.Kind, "ship_id", e.ShipID)

	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		logger.Error("Failed to marshal event details", "error", err)
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	var shipID any
	if e.ShipID != 0 {
		shipID = e.ShipID
	}

	query := `
		INSERT INTO event_logs (kind, ship_id, target_ship_id, target_planet_id, sector_id, outcome, damage, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := exec.ExecContext(ctx, query, e.Kind, shipID, e.TargetShipID, e.TargetPlanetID,
		e.SectorID, e.Outcome, e.Damage, string(payload)); err != nil {
		logger.Error("Failed to record event", "error", err)
		return fmt.Errorf("failed to record event: %w", err)
	}

	logger.Debug("Event recorded", "outcome", e.Outcome)
	return nil
}

// DeleteOlderThan prunes entries created before cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "eventlog_repository", "operation", "delete_older_than", "cutoff", cutoff)

	result, err := exec.ExecContext(ctx, `DELETE FROM event_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		logger.Error("Failed to prune event logs", "error", err)
		return 0, fmt.Errorf("failed to prune event logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	logger.Info("Event logs pruned", "deleted", deleted)
	return deleted, nil
}
