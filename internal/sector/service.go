package sector

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type Service struct {
	repo   *Repository
	cfg    *config.GameConfig
	logger *slog.Logger
}

func NewService(repo *Repository, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing sector service")

	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// SectorView is a sector with its warp lanes.
type SectorView struct {
	*Sector
	Links []int `json:"links"`
}

func (s *Service) GetSector(ctx context.Context, id int) (*SectorView, error) {
	sec, err := s.repo.GetSector(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, errors.NotFoundf("sector %d not found", id)
	}

	links, err := s.repo.Neighbors(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []int{}
	}

	return &SectorView{Sector: sec, Links: links}, nil
}

func (s *Service) CountSectors(ctx context.Context) (int, error) {
	return s.repo.CountSectors(ctx)
}

// GenerateSectors builds and stores count sectors joined into a connected
// warp graph.
func (s *Service) GenerateSectors(ctx context.Context, rng *rand.Rand, count, extraLinks int, tx *database.Tx) ([]Sector, error) {
	logger := s.logger.With("component", "sector_service", "operation", "generate_sectors", "sector_count", count)
	logger.Debug("Generating sectors")

	sectors, links := Generate(rng, s.cfg, count, extraLinks)

	if err := s.repo.CreateSectorsBatch(ctx, sectors, tx); err != nil {
		return nil, fmt.Errorf("failed to create sectors: %w", err)
	}
	if err := s.repo.CreateLinksBatch(ctx, links, tx); err != nil {
		return nil, fmt.Errorf("failed to create links: %w", err)
	}

	logger.Info("Sectors generated", "count", len(sectors), "links", len(links))
	return sectors, nil
}

var portWeights = []struct {
	port   PortType
	weight int
}{
	{PortNone, 40},
	{PortOre, 15},
	{PortOrganics, 15},
	{PortGoods, 15},
	{PortEnergy, 15},
}

// Generate lays out count sectors. The protected sector is always the
// starbase. A ring guarantees every sector is reachable; up to extraLinks
// random lanes add shortcuts. Every lane is emitted in both directions.
func Generate(rng *rand.Rand, cfg *config.GameConfig, count, extraLinks int) ([]Sector, []Link) {
	names := generateSectorNames()
	sectors := make([]Sector, 0, count)

	for id := 1; id <= count; id++ {
		sec := Sector{
			ID:       id,
			Name:     fmt.Sprintf("%s %d", names[(id-1)%len(names)], id),
			PortType: PortNone,
		}

		if id == cfg.Game.ProtectedSectorID {
			sec.Name = "Sol"
			sec.IsStarbase = true
			sec.PortType = PortSpecial
		} else {
			sec.PortType = randomPortType(rng)
		}

		if commodity, ok := sec.PortType.Commodity(); ok {
			capacity := cfg.Commodities[commodity].Capacity
			sec.SetStock(commodity, capacity/4+rng.Int64N(capacity/4+1))
			sec.PortColonists = cfg.PortColonists.Capacity / 2
		}

		sectors = append(sectors, sec)
	}

	seen := make(map[Link]bool)
	var links []Link
	add := func(a, b int) {
		if a == b || seen[Link{From: a, To: b}] {
			return
		}
		seen[Link{From: a, To: b}] = true
		seen[Link{From: b, To: a}] = true
		links = append(links, Link{From: a, To: b}, Link{From: b, To: a})
	}

	for id := 1; id < count; id++ {
		add(id, id+1)
	}
	if count > 2 {
		add(count, 1)
	}
	for i := 0; i < extraLinks && count > 2; i++ {
		add(1+rng.IntN(count), 1+rng.IntN(count))
	}

	return sectors, links
}

func randomPortType(rng *rand.Rand) PortType {
	total := 0
	for _, w := range portWeights {
		total += w.weight
	}

	roll := rng.IntN(total)
	for _, w := range portWeights {
		if roll < w.weight {
			return w.port
		}
		roll -= w.weight
	}
	return PortNone
}

func generateSectorNames() []string {
	return []string{
		"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta", "Theta",
		"Iota", "Kappa", "Lambda", "Mu", "Nu", "Xi", "Omicron", "Pi",
		"Rho", "Sigma", "Tau", "Upsilon", "Phi", "Chi", "Psi", "Omega",
	}
}
