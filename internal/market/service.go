package market

import (
	"context"
	"log/slog"

	"traders-server/internal/sector"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type ShipStore interface {
	GetShip(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error
}

type PortStore interface {
	GetSector(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error)
	GetSectorForUpdate(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error)
	UpdatePort(ctx context.Context, s *sector.Sector, tx *database.Tx) error
}

type Service struct {
	db     database.TxRunner
	ships  ShipStore
	ports  PortStore
	cfg    *config.GameConfig
	logger *slog.Logger
}

func NewService(db database.TxRunner, ships ShipStore, ports PortStore, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing market service")

	return &Service{
		db:     db,
		ships:  ships,
		ports:  ports,
		cfg:    cfg,
		logger: logger,
	}
}

// Trade is the settled outcome of a buy or sell.
type Trade struct {
	Commodity   string `json:"commodity"`
	Amount      int64  `json:"amount"`
	UnitPrice   int64  `json:"unit_price"`
	Total       int64  `json:"total"`
	Credits     int64  `json:"credits"`
	PortStock   int64  `json:"port_stock"`
	SkillPoints int    `json:"skill_points"`
}

// Prices quotes the port in the ship's current sector.
func (s *Service) Prices(ctx context.Context, shipID int) ([]Quote, error) {
	sh, err := s.ships.GetShip(ctx, shipID, nil)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, errors.NotFoundf("ship %d not found", shipID)
	}

	port, err := s.ports.GetSector(ctx, sh.SectorID, nil)
	if err != nil {
		return nil, err
	}
	if port == nil {
		return nil, errors.NotFoundf("sector %d not found", sh.SectorID)
	}

	return Quotes(port, s.cfg, ship.TradingBonus(s.cfg, sh.Skills.Trading)), nil
}

// Buy purchases amount units of commodity from the port the ship is docked at.
func (s *Service) Buy(ctx context.Context, shipID int, commodity string, amount int64) (*Trade, error) {
	return s.trade(ctx, shipID, commodity, amount, true)
}

// Sell sells amount units of commodity to the port the ship is docked at.
func (s *Service) Sell(ctx context.Context, shipID int, commodity string, amount int64) (*Trade, error) {
	return s.trade(ctx, shipID, commodity, amount, false)
}

func (s *Service) trade(ctx context.Context, shipID int, commodity string, amount int64, buying bool) (*Trade, error) {
	operation := "sell"
	if buying {
		operation = "buy"
	}
	logger := s.logger.With("component", "market_service", "operation", operation,
		"ship_id", shipID, "commodity", commodity, "amount", amount)
	logger.Debug("Processing trade")

	commodityCfg, ok := s.cfg.Commodities[commodity]
	if !ok {
		return nil, errors.Validationf("unknown commodity %q", commodity)
	}
	if amount <= 0 {
		return nil, errors.Validation("amount must be positive")
	}

	var result *Trade
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, err := s.ships.GetShipForUpdate(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if sh == nil {
			return errors.NotFoundf("ship %d not found", shipID)
		}
		if sh.Destroyed {
			return errors.Preconditionf("ship is destroyed")
		}

		port, err := s.ports.GetSectorForUpdate(ctx, sh.SectorID, tx)
		if err != nil {
			return err
		}
		if port == nil {
			return errors.NotFoundf("sector %d not found", sh.SectorID)
		}

		class, err := ship.Class(s.cfg, sh.Class)
		if err != nil {
			return err
		}
		caps := ship.CapacitiesFor(s.cfg, class, sh.Equipment)
		bonus := ship.TradingBonus(s.cfg, sh.Skills.Trading)
		stock, _ := port.Stock(commodity)
		price := Price(commodityCfg, stock)
		carried, _ := sh.Cargo(commodity)

		var unit, total int64
		if buying {
			if !PortSells(port.PortType, commodity) {
				return errors.Preconditionf("this port does not sell %s", commodity)
			}
			if stock < amount {
				return errors.Preconditionf("port only has %d %s", stock, commodity)
			}
			unit = PlayerBuyPrice(price, bonus)
			total = unit * amount
			if sh.Credits < total {
				return errors.Preconditionf("purchase costs %d credits, you have %d", total, sh.Credits)
			}
			if err := checkRoom(sh, caps, commodity, amount); err != nil {
				return err
			}
			sh.Credits -= total
			sh.AddCargo(commodity, amount)
			port.SetStock(commodity, stock-amount)
		} else {
			if !PortBuys(port.PortType, commodity) {
				return errors.Preconditionf("this port does not buy %s", commodity)
			}
			if carried < amount {
				return errors.Preconditionf("you only carry %d %s", carried, commodity)
			}
			if stock+amount > commodityCfg.Capacity {
				return errors.Preconditionf("port can only take %d more %s", max(0, commodityCfg.Capacity-stock), commodity)
			}
			unit = PlayerSellPrice(price, bonus)
			total = unit * amount
			sh.Credits += total
			sh.AddCargo(commodity, -amount)
			port.SetStock(commodity, stock+amount)
		}

		points := 0
		if per := s.cfg.Skills.CreditsPerTradePoint; per > 0 {
			points = int(total / per)
		}
		sh.Skills.Points += points

		if err := s.ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
		if err := s.ports.UpdatePort(ctx, port, tx); err != nil {
			return err
		}

		newStock, _ := port.Stock(commodity)
		result = &Trade{
			Commodity:   commodity,
			Amount:      amount,
			UnitPrice:   unit,
			Total:       total,
			Credits:     sh.Credits,
			PortStock:   newStock,
			SkillPoints: points,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Trade settled", "unit_price", result.UnitPrice, "total", result.Total, "skill_points", result.SkillPoints)
	return result, nil
}

// checkRoom verifies the ship can stow amount more of commodity. Energy has
// its own capacity; everything else shares the holds.
func checkRoom(sh *ship.Ship, caps ship.Capacities, commodity string, amount int64) error {
	if commodity == config.CommodityEnergy {
		if sh.Energy+amount > caps.Energy {
			return errors.Preconditionf("energy capacity is %d, you carry %d", caps.Energy, sh.Energy)
		}
		return nil
	}
	if free := caps.Holds - sh.HoldsUsed(); amount > free {
		return errors.Preconditionf("only %d free holds", max(0, free))
	}
	return nil
}
