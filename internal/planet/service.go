package planet

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

// Store is the persistence the planet service needs.
type Store interface {
	GetPlanet(ctx context.Context, id int, tx *database.Tx) (*Planet, error)
	GetPlanetForUpdate(ctx context.Context, id int, tx *database.Tx) (*Planet, error)
	UpdatePlanet(ctx context.Context, p *Planet, tx *database.Tx) error
	CreatePlanetsBatch(ctx context.Context, planets []BatchInsertRequest, tx *database.Tx) (int, error)
}

type Service struct {
	db     database.TxRunner
	repo   Store
	logger *slog.Logger
}

func NewService(db database.TxRunner, repo Store, logger *slog.Logger) *Service {
	logger.Debug("Initializing planet service")

	return &Service{
		db:     db,
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetPlanet(ctx context.Context, id int) (*Planet, error) {
	p, err := s.repo.GetPlanet(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NotFoundf("planet %d not found", id)
	}
	return p, nil
}

// SetProduction changes how an owned planet splits its output.
func (s *Service) SetProduction(ctx context.Context, shipID, planetID int, production Production) (*Planet, error) {
	logger := s.logger.With("component", "planet_service", "operation", "set_production", "ship_id", shipID, "planet_id", planetID)
	logger.Debug("Setting planet production")

	if err := production.Validate(); err != nil {
		return nil, errors.WrapValidation("invalid production allocation", err)
	}

	var result *Planet
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		p, err := s.repo.GetPlanetForUpdate(ctx, planetID, tx)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.NotFoundf("planet %d not found", planetID)
		}
		if !p.Owner.Is(shipID) {
			return errors.Forbiddenf("planet %d is not yours", planetID)
		}

		p.Production = production
		if err := s.repo.UpdatePlanet(ctx, p, tx); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Planet production updated", "production", production)
	return result, nil
}

// GeneratePlanets seeds unowned planets into the given sectors. Each sector
// gets a planet with probability chance.
func (s *Service) GeneratePlanets(ctx context.Context, rng *rand.Rand, sectorIDs []int, chance float64, tx *database.Tx) (int, error) {
	logger := s.logger.With("component", "planet_service", "operation", "generate_planets", "sectors", len(sectorIDs), "chance", chance)
	logger.Debug("Generating planets")

	names := generatePlanetNames()
	var requests []BatchInsertRequest
	for _, sectorID := range sectorIDs {
		if rng.Float64() >= chance {
			continue
		}
		requests = append(requests, BatchInsertRequest{
			SectorID: sectorID,
			Name:     fmt.Sprintf("%s %d", names[rng.IntN(len(names))], sectorID),
		})
	}

	created, err := s.repo.CreatePlanetsBatch(ctx, requests, tx)
	if err != nil {
		logger.Error("Failed to create planets", "error", err)
		return 0, fmt.Errorf("failed to create planets: %w", err)
	}

	logger.Info("Planets generated", "count", created)
	return created, nil
}

func generatePlanetNames() []string {
	return []string{
		"Prime", "Alpha", "Beta", "Gamma", "Major", "Minor", "Core", "Outer",
		"Haven", "Reach", "Hold", "Landing", "Rest", "Forge", "Harbor", "Drift",
	}
}
