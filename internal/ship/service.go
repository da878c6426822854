package ship

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

// Store is the persistence the ship service needs.
type Store interface {
	GetShip(ctx context.Context, id int, tx *database.Tx) (*Ship, error)
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*Ship, error)
	CreateShip(ctx context.Context, s *Ship, tx *database.Tx) error
	UpdateShip(ctx context.Context, s *Ship, tx *database.Tx) error
}

// AccountOpener creates the bank account every new ship starts with.
type AccountOpener interface {
	OpenAccount(ctx context.Context, shipID int, tx *database.Tx) error
}

type Service struct {
	db       database.TxRunner
	repo     Store
	accounts AccountOpener
	cfg      *config.GameConfig
	logger   *slog.Logger
}

func NewService(db database.TxRunner, repo Store, accounts AccountOpener, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing ship service")

	return &Service{
		db:       db,
		repo:     repo,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
	}
}

// ShipView is a ship together with its derived capacities.
type ShipView struct {
	*Ship
	Capacities Capacities `json:"capacities"`
}

func (s *Service) GetShip(ctx context.Context, id int) (*ShipView, error) {
	ship, err := s.repo.GetShip(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if ship == nil {
		return nil, errors.NotFoundf("ship %d not found", id)
	}
	return s.view(ship)
}

func (s *Service) view(ship *Ship) (*ShipView, error) {
	class, err := Class(s.cfg, ship.Class)
	if err != nil {
		return nil, err
	}
	return &ShipView{Ship: ship, Capacities: CapacitiesFor(s.cfg, class, ship.Equipment)}, nil
}

// Register creates a ship of the given class in the protected sector with the
// class starting bonuses, plus an empty bank account.
func (s *Service) Register(ctx context.Context, name, classKey string) (*Ship, error) {
	logger := s.logger.With("component", "ship_service", "operation", "register", "name", name, "class", classKey)
	logger.Debug("Registering ship")

	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 100 {
		return nil, errors.Validation("ship name must be between 3 and 100 characters")
	}
	if classKey == "" {
		classKey = s.cfg.Game.DefaultClass
	}
	class, err := Class(s.cfg, classKey)
	if err != nil {
		return nil, err
	}

	start := class.Start
	ship := &Ship{
		Name:     name,
		Class:    classKey,
		SectorID: s.cfg.Game.ProtectedSectorID,
		Ore:      start.Ore,
		Organics: start.Organics,
		Goods:    start.Goods,
		Energy:   start.Energy,
		Fighters: start.Fighters,
		Torps:    start.Torps,
		ArmorPts: s.cfg.Game.StartArmor,
		Turns:    start.Turns,
		Credits:  start.Credits,
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.repo.CreateShip(ctx, ship, tx); err != nil {
			if IsUniqueViolation(err) {
				return errors.Conflictf("ship name %q is taken", name)
			}
			return err
		}
		return s.accounts.OpenAccount(ctx, ship.ID, tx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Ship registered", "ship_id", ship.ID)
	return ship, nil
}

// Upgrade raises a component by one level.
func (s *Service) Upgrade(ctx context.Context, shipID int, component Component) (*ShipView, error) {
	logger := s.logger.With("component", "ship_service", "operation", "upgrade", "ship_id", shipID, "part", component)

	var result *Ship
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ship, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if err := s.requireShipyard(ship); err != nil {
			return err
		}

		level, ok := ship.Equipment.Level(component)
		if !ok {
			return errors.Validationf("unknown component %q", component)
		}
		if level >= s.cfg.Upgrades.MaxLevel {
			return errors.Preconditionf("%s is already at the maximum level %d", component, s.cfg.Upgrades.MaxLevel)
		}

		cost := DiscountedUpgradeCost(s.cfg, level, ship.Skills.Engineering)
		if ship.Credits < cost {
			return errors.Preconditionf("upgrade costs %d credits, you have %d", cost, ship.Credits)
		}

		ship.Credits -= cost
		ship.Equipment.SetLevel(component, level+1)
		if err := s.repo.UpdateShip(ctx, ship, tx); err != nil {
			return err
		}

		logger.Info("Component upgraded", "level", level+1, "cost", cost)
		result = ship
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(result)
}

// Downgrade lowers a component by one level and refunds half the price of
// that level. Cargo that would no longer fit blocks the downgrade; armor
// points are trimmed to the new capacity.
func (s *Service) Downgrade(ctx context.Context, shipID int, component Component) (*ShipView, error) {
	logger := s.logger.With("component", "ship_service", "operation", "downgrade", "ship_id", shipID, "part", component)

	var result *Ship
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ship, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if err := s.requireShipyard(ship); err != nil {
			return err
		}

		level, ok := ship.Equipment.Level(component)
		if !ok {
			return errors.Validationf("unknown component %q", component)
		}
		if level == 0 {
			return errors.Preconditionf("%s is already at level 0", component)
		}

		class, err := Class(s.cfg, ship.Class)
		if err != nil {
			return err
		}
		lowered := ship.Equipment
		lowered.SetLevel(component, level-1)
		caps := CapacitiesFor(s.cfg, class, lowered)

		switch {
		case ship.HoldsUsed() > caps.Holds:
			return errors.Preconditionf("cargo does not fit in %d holds", caps.Holds)
		case ship.Energy > caps.Energy:
			return errors.Preconditionf("energy does not fit in capacity %d", caps.Energy)
		case ship.Fighters > caps.Fighters:
			return errors.Preconditionf("fighters do not fit in capacity %d", caps.Fighters)
		case ship.Torps > caps.Torps:
			return errors.Preconditionf("torpedoes do not fit in capacity %d", caps.Torps)
		}

		refund := DowngradeRefund(s.cfg, level)
		ship.Equipment = lowered
		ship.Credits += refund
		ship.ArmorPts = min(ship.ArmorPts, caps.Armor)
		if err := s.repo.UpdateShip(ctx, ship, tx); err != nil {
			return err
		}

		logger.Info("Component downgraded", "level", level-1, "refund", refund)
		result = ship
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(result)
}

// AllocateSkill spends skill points to raise one skill by a level.
func (s *Service) AllocateSkill(ctx context.Context, shipID int, skill string) (*Ship, error) {
	logger := s.logger.With("component", "ship_service", "operation", "allocate_skill", "ship_id", shipID, "skill", skill)

	var result *Ship
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ship, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}

		var level *int
		switch skill {
		case "trading":
			level = &ship.Skills.Trading
		case "combat":
			level = &ship.Skills.Combat
		case "engineering":
			level = &ship.Skills.Engineering
		case "leadership":
			level = &ship.Skills.Leadership
		default:
			return errors.Validationf("unknown skill %q", skill)
		}

		if *level >= s.cfg.Skills.MaxLevel {
			return errors.Preconditionf("%s is already at the maximum level", skill)
		}
		cost := SkillCost(*level)
		if ship.Skills.Points < cost {
			return errors.Preconditionf("raising %s costs %d points, you have %d", skill, cost, ship.Skills.Points)
		}

		ship.Skills.Points -= cost
		*level++
		if err := s.repo.UpdateShip(ctx, ship, tx); err != nil {
			return err
		}

		logger.Info("Skill raised", "level", *level, "cost", cost)
		result = ship
		return nil
	})
	return result, err
}

// Respawn returns a destroyed ship to play as a fresh hull in the protected
// sector. An escape pod is consumed and lets the pilot keep their credits.
func (s *Service) Respawn(ctx context.Context, shipID int) (*Ship, error) {
	logger := s.logger.With("component", "ship_service", "operation", "respawn", "ship_id", shipID)

	var result *Ship
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ship, err := s.repo.GetShipForUpdate(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if ship == nil {
			return errors.NotFoundf("ship %d not found", shipID)
		}
		if !ship.Destroyed {
			return errors.Preconditionf("ship is not destroyed")
		}

		class, err := Class(s.cfg, ship.Class)
		if err != nil {
			return err
		}

		credits := class.Start.Credits
		if ship.Devices.EscapePod {
			credits = ship.Credits
		}

		ship.Equipment = Equipment{}
		ship.Devices = Devices{}
		ship.SectorID = s.cfg.Game.ProtectedSectorID
		ship.PlanetID = nil
		ship.Ore, ship.Organics, ship.Goods, ship.Colonists = 0, 0, 0, 0
		ship.Energy = class.Start.Energy
		ship.Fighters = class.Start.Fighters
		ship.Torps = class.Start.Torps
		ship.ArmorPts = s.cfg.Game.StartArmor
		ship.Credits = credits
		ship.Destroyed = false

		if err := s.repo.UpdateShip(ctx, ship, tx); err != nil {
			return err
		}

		logger.Info("Ship respawned", "kept_credits", credits)
		result = ship
		return nil
	})
	return result, err
}

func (s *Service) lockActive(ctx context.Context, shipID int, tx *database.Tx) (*Ship, error) {
	ship, err := s.repo.GetShipForUpdate(ctx, shipID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ship: %w", err)
	}
	if ship == nil {
		return nil, errors.NotFoundf("ship %d not found", shipID)
	}
	if ship.Destroyed {
		return nil, errors.Preconditionf("ship is destroyed")
	}
	return ship, nil
}

// Equipment is bought and sold in the protected sector's shipyard.
func (s *Service) requireShipyard(ship *Ship) error {
	if ship.SectorID != s.cfg.Game.ProtectedSectorID {
		return errors.Preconditionf("the shipyard is in sector %d", s.cfg.Game.ProtectedSectorID)
	}
	return nil
}
