package valuation

import (
	"context"
	"log/slog"

	"traders-server/internal/planet"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type ShipStore interface {
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	UpdateScore(ctx context.Context, id int, score int64, tx *database.Tx) error
}

type PlanetStore interface {
	ListOwnedBy(ctx context.Context, shipID int, tx *database.Tx) ([]planet.Planet, error)
}

// BankPosition reports balance minus loan for a ship.
type BankPosition interface {
	NetPosition(ctx context.Context, shipID int, tx *database.Tx) (int64, error)
}

type Service struct {
	db      database.TxRunner
	ships   ShipStore
	planets PlanetStore
	bank    BankPosition
	cfg     *config.GameConfig
	logger  *slog.Logger
}

func NewService(db database.TxRunner, ships ShipStore, planets PlanetStore, bank BankPosition, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing valuation service")

	return &Service{
		db:      db,
		ships:   ships,
		planets: planets,
		bank:    bank,
		cfg:     cfg,
		logger:  logger,
	}
}

// RefreshScore recomputes and stores the cached score of a ship.
func (s *Service) RefreshScore(ctx context.Context, shipID int) (int64, error) {
	logger := s.logger.With("component", "valuation_service", "operation", "refresh_score", "ship_id", shipID)

	var score int64
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, err := s.ships.GetShipForUpdate(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if sh == nil {
			return errors.NotFoundf("ship %d not found", shipID)
		}

		planets, err := s.planets.ListOwnedBy(ctx, shipID, tx)
		if err != nil {
			return err
		}
		net, err := s.bank.NetPosition(ctx, shipID, tx)
		if err != nil {
			return err
		}

		score = Score(s.cfg, Assets{Ship: sh, Planets: planets, Bank: net})
		return s.ships.UpdateScore(ctx, shipID, score, tx)
	})
	if err != nil {
		return 0, err
	}

	logger.Debug("Score refreshed", "score", score)
	return score, nil
}
