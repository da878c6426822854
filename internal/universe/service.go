package universe

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"traders-server/internal/sector"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
)

type SectorGenerator interface {
	CountSectors(ctx context.Context) (int, error)
	GenerateSectors(ctx context.Context, rng *rand.Rand, count, extraLinks int, tx *database.Tx) ([]sector.Sector, error)
}

type PlanetGenerator interface {
	GeneratePlanets(ctx context.Context, rng *rand.Rand, sectorIDs []int, chance float64, tx *database.Tx) (int, error)
}

type Service struct {
	db      database.TxRunner
	sectors SectorGenerator
	planets PlanetGenerator
	cfg     *config.GameConfig
	logger  *slog.Logger
}

func NewService(db database.TxRunner, sectors SectorGenerator, planets PlanetGenerator, cfg *config.GameConfig, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		sectors: sectors,
		planets: planets,
		cfg:     cfg,
		logger:  logger,
	}
}

// Summary describes the result of Bootstrap.
type Summary struct {
	Generated bool
	Sectors   int
	Planets   int
}

// Bootstrap generates the galaxy when the database holds no sectors yet.
// Sectors, links and planets are created in one transaction.
func (s *Service) Bootstrap(ctx context.Context, rng *rand.Rand) (*Summary, error) {
	logger := s.logger.With("component", "universe_service", "operation", "bootstrap")

	existing, err := s.sectors.CountSectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sectors: %w", err)
	}
	if existing > 0 {
		logger.Debug("Universe already generated", "sectors", existing)
		return &Summary{Sectors: existing}, nil
	}

	size := s.cfg.Universe
	logger.Info("Starting universe generation",
		"sectors", size.Sectors,
		"extra_links", size.ExtraLinks,
		"planet_chance", size.PlanetChance)

	summary := &Summary{Generated: true}
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		sectors, err := s.sectors.GenerateSectors(ctx, rng, size.Sectors, size.ExtraLinks, tx)
		if err != nil {
			return err
		}

		ids := make([]int, 0, len(sectors))
		for _, sec := range sectors {
			if sec.ID == s.cfg.Game.ProtectedSectorID {
				continue
			}
			ids = append(ids, sec.ID)
		}

		planets, err := s.planets.GeneratePlanets(ctx, rng, ids, size.PlanetChance, tx)
		if err != nil {
			return err
		}

		summary.Sectors = len(sectors)
		summary.Planets = planets
		return nil
	})
	if err != nil {
		logger.Error("Failed to generate universe", "error", err)
		return nil, fmt.Errorf("failed to generate universe: %w", err)
	}

	logger.Info("Universe generation completed", "sectors", summary.Sectors, "planets", summary.Planets)
	return summary, nil
}
