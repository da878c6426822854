package ship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"traders-server/internal/shared/database"

	"github.com/lib/pq"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing ship repository")

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

const shipColumns = `
	id, name, class, team, sector_id, planet_id,
	hull_level, engines_level, power_level, computer_level, sensors_level,
	beams_level, torp_launchers_level, shields_level, armor_level, cloak_level,
	ore, organics, goods, energy, colonists, fighters, torps, armor_pts,
	turns, turns_used, credits, score,
	dev_genesis, dev_emergency_warp, dev_warp_editors, dev_mine_deflectors,
	dev_escape_pod, dev_fuel_scoop, dev_lssd,
	skill_trading, skill_combat, skill_engineering, skill_leadership, skill_points,
	destroyed, last_login, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShip(row scanner) (*Ship, error) {
	var s Ship
	var planetID sql.NullInt64
	err := row.Scan(
		&s.ID, &s.Name, &s.Class, &s.Team, &s.SectorID, &planetID,
		&s.Equipment.Hull, &s.Equipment.Engines, &s.Equipment.Power, &s.Equipment.Computer, &s.Equipment.Sensors,
		&s.Equipment.Beams, &s.Equipment.TorpLaunchers, &s.Equipment.Shields, &s.Equipment.Armor, &s.Equipment.Cloak,
		&s.Ore, &s.Organics, &s.Goods, &s.Energy, &s.Colonists, &s.Fighters, &s.Torps, &s.ArmorPts,
		&s.Turns, &s.TurnsUsed, &s.Credits, &s.Score,
		&s.Devices.Genesis, &s.Devices.EmergencyWarp, &s.Devices.WarpEditors, &s.Devices.MineDeflectors,
		&s.Devices.EscapePod, &s.Devices.FuelScoop, &s.Devices.LSSD,
		&s.Skills.Trading, &s.Skills.Combat, &s.Skills.Engineering, &s.Skills.Leadership, &s.Skills.Points,
		&s.Destroyed, &s.LastLogin, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if planetID.Valid {
		id := int(planetID.Int64)
		s.PlanetID = &id
	}
	return &s, nil
}

// GetShip returns nil when no ship has the given id.
func (r *Repository) GetShip(ctx context.Context, id int, tx *database.Tx) (*Ship, error) {
	return r.getShip(ctx, id, false, tx)
}

// GetShipForUpdate re-reads the ship and holds its row lock until tx ends.
func (r *Repository) GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*Ship, error) {
	return r.getShip(ctx, id, true, tx)
}

func (r *Repository) getShip(ctx context.Context, id int, forUpdate bool, tx *database.Tx) (*Ship, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ship_repository", "operation", "get_ship", "ship_id", id, "for_update", forUpdate)
	logger.Debug("Getting ship")

	query := `SELECT ` + shipColumns + ` FROM ships WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	s, err := scanShip(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Ship not found")
			return nil, nil
		}
		logger.Error("Failed to get ship", "error", err)
		return nil, fmt.Errorf("failed to get ship: %w", err)
	}

	return s, nil
}

// GetShipsForUpdate locks several ships in id order so that concurrent
// transactions touching the same pair cannot deadlock.
func (r *Repository) GetShipsForUpdate(ctx context.Context, ids []int, tx *database.Tx) (map[int]*Ship, error) {
	logger := r.logger.With("component", "ship_repository", "operation", "get_ships_for_update", "ship_ids", ids)
	logger.Debug("Locking ships")

	query := `SELECT ` + shipColumns + ` FROM ships WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	list, err := r.queryShips(ctx, r.getExecutor(tx), logger, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	ships := make(map[int]*Ship, len(list))
	for i := range list {
		ships[list[i].ID] = &list[i]
	}
	return ships, nil
}

// ListOversizedForUpdate locks the flying ships in a sector whose hull is
// above maxHull.
func (r *Repository) ListOversizedForUpdate(ctx context.Context, sectorID, maxHull int, tx *database.Tx) ([]Ship, error) {
	logger := r.logger.With("component", "ship_repository", "operation", "list_oversized_for_update", "sector_id", sectorID, "max_hull", maxHull)

	query := `SELECT ` + shipColumns + `
		FROM ships
		WHERE sector_id = $1 AND hull_level > $2 AND NOT destroyed
		ORDER BY id
		FOR UPDATE`
	return r.queryShips(ctx, r.getExecutor(tx), logger, query, sectorID, maxHull)
}

func (r *Repository) queryShips(ctx context.Context, exec database.Executor, logger *slog.Logger, query string, args ...any) ([]Ship, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query ships", "error", err)
		return nil, fmt.Errorf("failed to query ships: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var ships []Ship
	for rows.Next() {
		s, err := scanShip(rows)
		if err != nil {
			logger.Error("Failed to scan ship row", "error", err)
			return nil, fmt.Errorf("failed to scan ship: %w", err)
		}
		ships = append(ships, *s)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating ships: %w", err)
	}
	return ships, nil
}

// GrantTurns gives every flying ship that logged in after activeSince
// amount turns, capped at maxTurns. It returns the number of ships updated.
func (r *Repository) GrantTurns(ctx context.Context, amount, maxTurns int64, activeSince time.Time, tx *database.Tx) (int64, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ship_repository", "operation", "grant_turns", "amount", amount)

	query := `
		UPDATE ships
		SET turns = LEAST(turns + $1, $2), updated_at = NOW()
		WHERE NOT destroyed AND last_login > $3 AND turns < $2
	`
	result, err := exec.ExecContext(ctx, query, amount, maxTurns, activeSince)
	if err != nil {
		logger.Error("Failed to grant turns", "error", err)
		return 0, fmt.Errorf("failed to grant turns: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	logger.Debug("Turns granted", "ships", updated)
	return updated, nil
}

// CreateShip inserts s and fills in its generated fields.
func (r *Repository) CreateShip(ctx context.Context, s *Ship, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ship_repository", "operation", "create_ship", "name", s.Name, "class", s.Class)
	logger.Debug("Creating ship")

	query := `
		INSERT INTO ships (name, class, team, sector_id, ore, organics, goods, energy,
			fighters, torps, armor_pts, turns, credits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, last_login, created_at, updated_at
	`

	err := exec.QueryRowContext(ctx, query,
		s.Name, s.Class, s.Team, s.SectorID, s.Ore, s.Organics, s.Goods, s.Energy,
		s.Fighters, s.Torps, s.ArmorPts, s.Turns, s.Credits,
	).Scan(&s.ID, &s.LastLogin, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		logger.Error("Failed to create ship", "error", err)
		return fmt.Errorf("failed to create ship: %w", err)
	}

	logger.Info("Ship created successfully", "ship_id", s.ID)
	return nil
}

// UpdateShip writes every mutable column of s.
func (r *Repository) UpdateShip(ctx context.Context, s *Ship, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ship_repository", "operation", "update_ship", "ship_id", s.ID)
	logger.Debug("Updating ship")

	query := `
		UPDATE ships SET
			team = $2, sector_id = $3, planet_id = $4,
			hull_level = $5, engines_level = $6, power_level = $7, computer_level = $8, sensors_level = $9,
			beams_level = $10, torp_launchers_level = $11, shields_level = $12, armor_level = $13, cloak_level = $14,
			ore = $15, organics = $16, goods = $17, energy = $18, colonists = $19,
			fighters = $20, torps = $21, armor_pts = $22,
			turns = $23, turns_used = $24, credits = $25, score = $26,
			dev_genesis = $27, dev_emergency_warp = $28, dev_warp_editors = $29, dev_mine_deflectors = $30,
			dev_escape_pod = $31, dev_fuel_scoop = $32, dev_lssd = $33,
			skill_trading = $34, skill_combat = $35, skill_engineering = $36, skill_leadership = $37, skill_points = $38,
			destroyed = $39, updated_at = NOW()
		WHERE id = $1
	`

	e := s.Equipment
	result, err := exec.ExecContext(ctx, query,
		s.ID, s.Team, s.SectorID, s.PlanetID,
		e.Hull, e.Engines, e.Power, e.Computer, e.Sensors,
		e.Beams, e.TorpLaunchers, e.Shields, e.Armor, e.Cloak,
		s.Ore, s.Organics, s.Goods, s.Energy, s.Colonists,
		s.Fighters, s.Torps, s.ArmorPts,
		s.Turns, s.TurnsUsed, s.Credits, s.Score,
		s.Devices.Genesis, s.Devices.EmergencyWarp, s.Devices.WarpEditors, s.Devices.MineDeflectors,
		s.Devices.EscapePod, s.Devices.FuelScoop, s.Devices.LSSD,
		s.Skills.Trading, s.Skills.Combat, s.Skills.Engineering, s.Skills.Leadership, s.Skills.Points,
		s.Destroyed,
	)
	if err != nil {
		logger.Error("Failed to update ship", "error", err)
		return fmt.Errorf("failed to update ship: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected != 1 {
		logger.Error("Ship vanished during update")
		return fmt.Errorf("failed to update ship %d: row not found", s.ID)
	}

	return nil
}

// UpdateScore stores a freshly computed score.
func (r *Repository) UpdateScore(ctx context.Context, id int, score int64, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "ship_repository", "operation", "update_score", "ship_id", id)

	if _, err := exec.ExecContext(ctx, `UPDATE ships SET score = $2, updated_at = NOW() WHERE id = $1`, id, score); err != nil {
		logger.Error("Failed to update score", "error", err)
		return fmt.Errorf("failed to update score: %w", err)
	}

	logger.Debug("Score updated", "score", score)
	return nil
}

// TouchLogin records activity so the turn grant keeps including the ship.
func (r *Repository) TouchLogin(ctx context.Context, id int) error {
	logger := r.logger.With("component", "ship_repository", "operation", "touch_login", "ship_id", id)

	if _, err := r.db.ExecContext(ctx, `UPDATE ships SET last_login = NOW() WHERE id = $1`, id); err != nil {
		logger.Error("Failed to update last login", "error", err)
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
