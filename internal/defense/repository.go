package defense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"traders-server/internal/shared/database"

	"github.com/lib/pq"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing defense repository")

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

const stackSelect = `
	SELECT d.id, d.ship_id, d.sector_id, d.defense_type, d.quantity, s.team, d.created_at
	FROM sector_defenses d
	JOIN ships s ON s.id = d.ship_id`

func scanStacks(rows *sql.Rows) ([]Stack, error) {
	var stacks []Stack
	for rows.Next() {
		var st Stack
		if err := rows.Scan(&st.ID, &st.ShipID, &st.SectorID, &st.Type, &st.Quantity, &st.Team, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan defense stack: %w", err)
		}
		stacks = append(stacks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating defense stacks: %w", err)
	}
	return stacks, nil
}

func (r *Repository) query(ctx context.Context, exec database.Executor, logger *slog.Logger, query string, args ...any) ([]Stack, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query defense stacks", "error", err)
		return nil, fmt.Errorf("failed to query defense stacks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	stacks, err := scanStacks(rows)
	if err != nil {
		logger.Error("Failed to read defense stacks", "error", err)
		return nil, err
	}

	logger.Debug("Defense stacks retrieved", "count", len(stacks))
	return stacks, nil
}

// ListInSectorForUpdate locks the stacks of one type in a sector, largest
// first.
func (r *Repository) ListInSectorForUpdate(ctx context.Context, sectorID int, t Type, tx *database.Tx) ([]Stack, error) {
	logger := r.logger.With("component", "defense_repository", "operation", "list_in_sector", "sector_id", sectorID, "type", t)

	query := stackSelect + `
		WHERE d.sector_id = $1 AND d.defense_type = $2 AND d.quantity > 0
		ORDER BY d.quantity DESC, d.id
		FOR UPDATE OF d`
	return r.query(ctx, r.getExecutor(tx), logger, query, sectorID, t)
}

// ListSectorForUpdate locks all stacks in a sector, largest first.
func (r *Repository) ListSectorForUpdate(ctx context.Context, sectorID int, tx *database.Tx) ([]Stack, error) {
	logger := r.logger.With("component", "defense_repository", "operation", "list_sector", "sector_id", sectorID)

	query := stackSelect + `
		WHERE d.sector_id = $1 AND d.quantity > 0
		ORDER BY d.quantity DESC, d.id
		FOR UPDATE OF d`
	return r.query(ctx, r.getExecutor(tx), logger, query, sectorID)
}

// ListByTypeForUpdate locks every stack of one type.
func (r *Repository) ListByTypeForUpdate(ctx context.Context, t Type, tx *database.Tx) ([]Stack, error) {
	logger := r.logger.With("component", "defense_repository", "operation", "list_by_type", "type", t)

	query := stackSelect + `
		WHERE d.defense_type = $1
		ORDER BY d.id
		FOR UPDATE OF d`
	return r.query(ctx, r.getExecutor(tx), logger, query, t)
}

// GetStackForUpdate returns nil when the stack does not exist.
func (r *Repository) GetStackForUpdate(ctx context.Context, id int, tx *database.Tx) (*Stack, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "defense_repository", "operation", "get_stack", "stack_id", id)

	var st Stack
	err := exec.QueryRowContext(ctx, stackSelect+` WHERE d.id = $1 FOR UPDATE OF d`, id).Scan(
		&st.ID, &st.ShipID, &st.SectorID, &st.Type, &st.Quantity, &st.Team, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Defense stack not found")
			return nil, nil
		}
		logger.Error("Failed to get defense stack", "error", err)
		return nil, fmt.Errorf("failed to get defense stack: %w", err)
	}
	return &st, nil
}

// AddToStack merges quantity into the ship's stack in the sector, creating it
// when absent, and returns the merged stack.
func (r *Repository) AddToStack(ctx context.Context, shipID, sectorID int, t Type, quantity int64, tx *database.Tx) (*Stack, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "defense_repository", "operation", "add_to_stack",
		"ship_id", shipID, "sector_id", sectorID, "type", t, "quantity", quantity)
	logger.Debug("Merging defense stack")

	query := `
		INSERT INTO sector_defenses (ship_id, sector_id, defense_type, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ship_id, sector_id, defense_type)
		DO UPDATE SET quantity = sector_defenses.quantity + EXCLUDED.quantity
		RETURNING id, ship_id, sector_id, defense_type, quantity, created_at
	`

	var st Stack
	err := exec.QueryRowContext(ctx, query, shipID, sectorID, t, quantity).Scan(
		&st.ID, &st.ShipID, &st.SectorID, &st.Type, &st.Quantity, &st.CreatedAt,
	)
	if err != nil {
		logger.Error("Failed to merge defense stack", "error", err)
		return nil, fmt.Errorf("failed to merge defense stack: %w", err)
	}

	logger.Info("Defense stack merged", "stack_id", st.ID, "total", st.Quantity)
	return &st, nil
}

// SaveQuantities writes new quantities and removes stacks left at zero.
func (r *Repository) SaveQuantities(ctx context.Context, stacks []Stack, tx *database.Tx) error {
	if len(stacks) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "defense_repository", "operation", "save_quantities", "count", len(stacks))

	ids := make([]int64, len(stacks))
	quantities := make([]int64, len(stacks))
	for i, st := range stacks {
		ids[i] = int64(st.ID)
		quantities[i] = max(st.Quantity, 0)
	}

	update := `
		UPDATE sector_defenses AS d SET quantity = v.quantity
		FROM unnest($1::bigint[], $2::bigint[]) AS v(id, quantity)
		WHERE d.id = v.id
	`
	if _, err := exec.ExecContext(ctx, update, pq.Array(ids), pq.Array(quantities)); err != nil {
		logger.Error("Failed to update defense quantities", "error", err)
		return fmt.Errorf("failed to update defense quantities: %w", err)
	}

	result, err := exec.ExecContext(ctx, `DELETE FROM sector_defenses WHERE id = ANY($1) AND quantity <= 0`, pq.Array(ids))
	if err != nil {
		logger.Error("Failed to delete empty defense stacks", "error", err)
		return fmt.Errorf("failed to delete empty defense stacks: %w", err)
	}

	removed, _ := result.RowsAffected()
	logger.Debug("Defense quantities saved", "removed", removed)
	return nil
}

// DeleteStack removes a stack outright.
func (r *Repository) DeleteStack(ctx context.Context, id int, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM sector_defenses WHERE id = $1`, id); err != nil {
		r.logger.Error("Failed to delete defense stack", "component", "defense_repository", "stack_id", id, "error", err)
		return fmt.Errorf("failed to delete defense stack: %w", err)
	}
	return nil
}
