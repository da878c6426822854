package planet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"traders-server/internal/shared/database"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing planet repository")

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

const planetColumns = `id, sector_id, name, owner_id, ore, organics, goods, energy, colonists,
	credits, fighters, torps, base, prod_ore, prod_organics, prod_goods, prod_energy,
	prod_fighters, prod_torps, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlanet(row scanner) (*Planet, error) {
	var p Planet
	err := row.Scan(
		&p.ID,
		&p.SectorID,
		&p.Name,
		&p.Owner,
		&p.Ore,
		&p.Organics,
		&p.Goods,
		&p.Energy,
		&p.Colonists,
		&p.Credits,
		&p.Fighters,
		&p.Torps,
		&p.Base,
		&p.Production.Ore,
		&p.Production.Organics,
		&p.Production.Goods,
		&p.Production.Energy,
		&p.Production.Fighters,
		&p.Production.Torps,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) queryPlanets(ctx context.Context, exec database.Executor, logger *slog.Logger, query string, args ...any) ([]Planet, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query planets", "error", err)
		return nil, fmt.Errorf("failed to query planets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var planets []Planet
	for rows.Next() {
		p, err := scanPlanet(rows)
		if err != nil {
			logger.Error("Failed to scan planet row", "error", err)
			return nil, fmt.Errorf("failed to scan planet: %w", err)
		}
		planets = append(planets, *p)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating planets: %w", err)
	}

	logger.Debug("Planets retrieved", "count", len(planets))
	return planets, nil
}

// GetPlanet returns nil when the planet does not exist.
func (r *Repository) GetPlanet(ctx context.Context, id int, tx *database.Tx) (*Planet, error) {
	return r.getPlanet(ctx, id, false, tx)
}

func (r *Repository) GetPlanetForUpdate(ctx context.Context, id int, tx *database.Tx) (*Planet, error) {
	return r.getPlanet(ctx, id, true, tx)
}

func (r *Repository) getPlanet(ctx context.Context, id int, forUpdate bool, tx *database.Tx) (*Planet, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "planet_repository", "operation", "get_planet", "planet_id", id, "for_update", forUpdate)
	logger.Debug("Getting planet")

	query := `SELECT ` + planetColumns + ` FROM planets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanPlanet(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Planet not found")
			return nil, nil
		}
		logger.Error("Failed to get planet", "error", err)
		return nil, fmt.Errorf("failed to get planet: %w", err)
	}

	return p, nil
}

// ListOwnedBy returns every planet owned by shipID.
func (r *Repository) ListOwnedBy(ctx context.Context, shipID int, tx *database.Tx) ([]Planet, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "list_owned_by", "ship_id", shipID)
	logger.Debug("Listing owned planets")

	query := `SELECT ` + planetColumns + ` FROM planets WHERE owner_id = $1 ORDER BY id`
	return r.queryPlanets(ctx, r.getExecutor(tx), logger, query, shipID)
}

// ListInSector returns the planets orbiting a sector.
func (r *Repository) ListInSector(ctx context.Context, sectorID int, tx *database.Tx) ([]Planet, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "list_in_sector", "sector_id", sectorID)
	logger.Debug("Listing planets in sector")

	query := `SELECT ` + planetColumns + ` FROM planets WHERE sector_id = $1 ORDER BY id`
	return r.queryPlanets(ctx, r.getExecutor(tx), logger, query, sectorID)
}

// ListProducingForUpdate locks owned planets with enough colonists to
// produce.
func (r *Repository) ListProducingForUpdate(ctx context.Context, minColonists int64, tx *database.Tx) ([]Planet, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "list_producing_for_update", "min_colonists", minColonists)
	logger.Debug("Locking producing planets")

	query := `SELECT ` + planetColumns + `
		FROM planets
		WHERE owner_id IS NOT NULL AND colonists >= $1
		ORDER BY id
		FOR UPDATE`
	return r.queryPlanets(ctx, r.getExecutor(tx), logger, query, minColonists)
}

// UpdatePlanet writes every mutable column of p.
func (r *Repository) UpdatePlanet(ctx context.Context, p *Planet, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "planet_repository", "operation", "update_planet", "planet_id", p.ID)

	query := `
		UPDATE planets SET
			owner_id = $2, ore = $3, organics = $4, goods = $5, energy = $6, colonists = $7,
			credits = $8, fighters = $9, torps = $10, base = $11,
			prod_ore = $12, prod_organics = $13, prod_goods = $14, prod_energy = $15,
			prod_fighters = $16, prod_torps = $17, updated_at = NOW()
		WHERE id = $1
	`

	_, err := exec.ExecContext(ctx, query,
		p.ID, p.Owner, p.Ore, p.Organics, p.Goods, p.Energy, p.Colonists,
		p.Credits, p.Fighters, p.Torps, p.Base,
		p.Production.Ore, p.Production.Organics, p.Production.Goods, p.Production.Energy,
		p.Production.Fighters, p.Production.Torps,
	)
	if err != nil {
		logger.Error("Failed to update planet", "error", err)
		return fmt.Errorf("failed to update planet: %w", err)
	}

	logger.Debug("Planet updated")
	return nil
}

type planetStock struct {
	ID       int   `json:"id"`
	Ore      int64 `json:"ore"`
	Organics int64 `json:"organics"`
	Goods    int64 `json:"goods"`
	Energy   int64 `json:"energy"`
	Fighters int64 `json:"fighters"`
	Torps    int64 `json:"torps"`
}

// UpdateStockBatch writes produced resources of many planets at once.
func (r *Repository) UpdateStockBatch(ctx context.Context, planets []Planet, tx *database.Tx) error {
	if len(planets) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "planet_repository", "operation", "update_stock_batch", "count", len(planets))
	logger.Debug("Updating planet stock in batch")

	stock := make([]planetStock, len(planets))
	for i, p := range planets {
		stock[i] = planetStock{ID: p.ID, Ore: p.Ore, Organics: p.Organics, Goods: p.Goods, Energy: p.Energy, Fighters: p.Fighters, Torps: p.Torps}
	}

	payload, err := json.Marshal(stock)
	if err != nil {
		logger.Error("Failed to marshal planet stock", "error", err)
		return fmt.Errorf("failed to marshal planet stock: %w", err)
	}

	query := `
		UPDATE planets AS p SET
			ore = (data->>'ore')::bigint,
			organics = (data->>'organics')::bigint,
			goods = (data->>'goods')::bigint,
			energy = (data->>'energy')::bigint,
			fighters = (data->>'fighters')::bigint,
			torps = (data->>'torps')::bigint,
			updated_at = NOW()
		FROM json_array_elements($1::json) AS data
		WHERE p.id = (data->>'id')::integer
	`

	if _, err := exec.ExecContext(ctx, query, string(payload)); err != nil {
		logger.Error("Failed to batch update planets", "error", err)
		return fmt.Errorf("failed to batch update planets: %w", err)
	}

	logger.Debug("Planet stock batch updated")
	return nil
}

// BatchInsertRequest is one unowned planet to create.
type BatchInsertRequest struct {
	SectorID  int    `json:"sector_id"`
	Name      string `json:"name"`
	Colonists int64  `json:"colonists"`
}

// CreatePlanetsBatch creates unowned planets in a single statement using JSON.
func (r *Repository) CreatePlanetsBatch(ctx context.Context, planets []BatchInsertRequest, tx *database.Tx) (int, error) {
	if len(planets) == 0 {
		return 0, nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "planet_repository", "operation", "create_planets_batch", "count", len(planets))
	logger.Debug("Creating planets in batch")

	payload, err := json.Marshal(planets)
	if err != nil {
		logger.Error("Failed to marshal planets to JSON", "error", err)
		return 0, fmt.Errorf("failed to marshal planets: %w", err)
	}

	query := `
		INSERT INTO planets (sector_id, name, colonists, owner_id)
		SELECT
			(data->>'sector_id')::integer,
			data->>'name',
			(data->>'colonists')::bigint,
			NULL
		FROM json_array_elements($1::json) AS data
	`

	result, err := exec.ExecContext(ctx, query, string(payload))
	if err != nil {
		logger.Error("Failed to batch create planets", "error", err)
		return 0, fmt.Errorf("failed to batch create planets: %w", err)
	}

	created, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	logger.Info("Planets batch created successfully", "count", created)
	return int(created), nil
}
