package sector

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
	logger.Debug("Initializing sector repository")

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

const sectorColumns = `id, name, port_type, port_ore, port_organics, port_goods, port_energy,
	port_colonists, is_starbase, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSector(row scanner) (*Sector, error) {
	var s Sector
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.PortType,
		&s.Ore,
		&s.Organics,
		&s.Goods,
		&s.Energy,
		&s.PortColonists,
		&s.IsStarbase,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSector returns nil when the sector does not exist.
func (r *Repository) GetSector(ctx context.Context, id int, tx *database.Tx) (*Sector, error) {
	return r.getSector(ctx, id, false, tx)
}

// GetSectorForUpdate locks the port row for the rest of tx.
func (r *Repository) GetSectorForUpdate(ctx context.Context, id int, tx *database.Tx) (*Sector, error) {
	return r.getSector(ctx, id, true, tx)
}

func (r *Repository) getSector(ctx context.Context, id int, forUpdate bool, tx *database.Tx) (*Sector, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "get_sector", "sector_id", id, "for_update", forUpdate)
	logger.Debug("Getting sector")

	query := `SELECT ` + sectorColumns + ` FROM sectors WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	s, err := scanSector(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Sector not found")
			return nil, nil
		}
		logger.Error("Failed to get sector", "error", err)
		return nil, fmt.Errorf("failed to get sector: %w", err)
	}

	return s, nil
}

// UpdatePort writes the port inventory of s.
func (r *Repository) UpdatePort(ctx context.Context, s *Sector, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "update_port", "sector_id", s.ID)

	query := `
		UPDATE sectors
		SET port_ore = $2, port_organics = $3, port_goods = $4, port_energy = $5,
			port_colonists = $6, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := exec.ExecContext(ctx, query, s.ID, s.Ore, s.Organics, s.Goods, s.Energy, s.PortColonists); err != nil {
		logger.Error("Failed to update port", "error", err)
		return fmt.Errorf("failed to update port: %w", err)
	}

	logger.Debug("Port updated")
	return nil
}

// ListPortsForUpdate locks every sector that has a trading port.
func (r *Repository) ListPortsForUpdate(ctx context.Context, tx *database.Tx) ([]Sector, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "list_ports_for_update")
	logger.Debug("Locking ports")

	query := `SELECT ` + sectorColumns + ` FROM sectors WHERE port_type <> 'none' ORDER BY id FOR UPDATE`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query ports", "error", err)
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var sectors []Sector
	for rows.Next() {
		s, err := scanSector(rows)
		if err != nil {
			logger.Error("Failed to scan sector row", "error", err)
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors = append(sectors, *s)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating sectors: %w", err)
	}

	logger.Debug("Ports locked", "count", len(sectors))
	return sectors, nil
}

type portStock struct {
	ID            int   `json:"id"`
	Ore           int64 `json:"ore"`
	Organics      int64 `json:"organics"`
	Goods         int64 `json:"goods"`
	Energy        int64 `json:"energy"`
	PortColonists int64 `json:"colonists"`
}

// UpdatePortsBatch writes the inventories of many ports in one statement.
func (r *Repository) UpdatePortsBatch(ctx context.Context, sectors []Sector, tx *database.Tx) error {
	if len(sectors) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "update_ports_batch", "count", len(sectors))
	logger.Debug("Updating ports in batch")

	stock := make([]portStock, len(sectors))
	for i, s := range sectors {
		stock[i] = portStock{ID: s.ID, Ore: s.Ore, Organics: s.Organics, Goods: s.Goods, Energy: s.Energy, PortColonists: s.PortColonists}
	}

	payload, err := json.Marshal(stock)
	if err != nil {
		logger.Error("Failed to marshal port stock", "error", err)
		return fmt.Errorf("failed to marshal port stock: %w", err)
	}

	query := `
		UPDATE sectors AS s SET
			port_ore = (data->>'ore')::bigint,
			port_organics = (data->>'organics')::bigint,
			port_goods = (data->>'goods')::bigint,
			port_energy = (data->>'energy')::bigint,
			port_colonists = (data->>'colonists')::bigint,
			updated_at = NOW()
		FROM json_array_elements($1::json) AS data
		WHERE s.id = (data->>'id')::integer
	`

	if _, err := exec.ExecContext(ctx, query, string(payload)); err != nil {
		logger.Error("Failed to batch update ports", "error", err)
		return fmt.Errorf("failed to batch update ports: %w", err)
	}

	logger.Debug("Ports batch updated")
	return nil
}

// Neighbors returns the sectors reachable in one warp from id.
func (r *Repository) Neighbors(ctx context.Context, id int, tx *database.Tx) ([]int, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "neighbors", "sector_id", id)

	rows, err := exec.QueryContext(ctx, `SELECT to_sector FROM sector_links WHERE from_sector = $1 ORDER BY to_sector`, id)
	if err != nil {
		logger.Error("Failed to query links", "error", err)
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var neighbors []int
	for rows.Next() {
		var to int
		if err := rows.Scan(&to); err != nil {
			logger.Error("Failed to scan link row", "error", err)
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		neighbors = append(neighbors, to)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return neighbors, nil
}

func (r *Repository) IsLinked(ctx context.Context, from, to int, tx *database.Tx) (bool, error) {
	exec := r.getExecutor(tx)

	var linked bool
	err := exec.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sector_links WHERE from_sector = $1 AND to_sector = $2)`, from, to,
	).Scan(&linked)
	if err != nil {
		r.logger.Error("Failed to check link", "component", "sector_repository", "from", from, "to", to, "error", err)
		return false, fmt.Errorf("failed to check link: %w", err)
	}
	return linked, nil
}

func (r *Repository) CountSectors(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sectors`).Scan(&count); err != nil {
		r.logger.Error("Failed to count sectors", "component", "sector_repository", "error", err)
		return 0, fmt.Errorf("failed to count sectors: %w", err)
	}
	return count, nil
}

// CreateSectorsBatch inserts generated sectors in one statement.
func (r *Repository) CreateSectorsBatch(ctx context.Context, sectors []Sector, tx *database.Tx) error {
	if len(sectors) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "create_sectors_batch", "count", len(sectors))
	logger.Debug("Creating sectors in batch")

	payload, err := json.Marshal(sectors)
	if err != nil {
		logger.Error("Failed to marshal sectors to JSON", "error", err)
		return fmt.Errorf("failed to marshal sectors: %w", err)
	}

	query := `
		INSERT INTO sectors (id, name, port_type, port_ore, port_organics, port_goods, port_energy, port_colonists, is_starbase)
		SELECT
			(data->>'id')::integer,
			data->>'name',
			data->>'port_type',
			(data->>'port_ore')::bigint,
			(data->>'port_organics')::bigint,
			(data->>'port_goods')::bigint,
			(data->>'port_energy')::bigint,
			(data->>'port_colonists')::bigint,
			(data->>'is_starbase')::boolean
		FROM json_array_elements($1::json) AS data
	`

	if _, err := exec.ExecContext(ctx, query, string(payload)); err != nil {
		logger.Error("Failed to batch create sectors", "error", err)
		return fmt.Errorf("failed to batch create sectors: %w", err)
	}

	logger.Info("Sectors batch created successfully")
	return nil
}

// CreateLinksBatch inserts warp lanes, skipping duplicates.
func (r *Repository) CreateLinksBatch(ctx context.Context, links []Link, tx *database.Tx) error {
	if len(links) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "sector_repository", "operation", "create_links_batch", "count", len(links))

	payload, err := json.Marshal(links)
	if err != nil {
		logger.Error("Failed to marshal links to JSON", "error", err)
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	query := `
		INSERT INTO sector_links (from_sector, to_sector)
		SELECT (data->>'from')::integer, (data->>'to')::integer
		FROM json_array_elements($1::json) AS data
		ON CONFLICT DO NOTHING
	`

	if _, err := exec.ExecContext(ctx, query, string(payload)); err != nil {
		logger.Error("Failed to batch create links", "error", err)
		return fmt.Errorf("failed to batch create links: %w", err)
	}

	logger.Debug("Links batch created")
	return nil
}
