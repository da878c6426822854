// Package travel moves ships along warp links and settles the sector
// defenses they run into on arrival.
package travel

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"traders-server/internal/combat"
	"traders-server/internal/defense"
	"traders-server/internal/eventlog"
	"traders-server/internal/sector"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type ShipStore interface {
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error
}

type SectorStore interface {
	GetSector(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error)
	IsLinked(ctx context.Context, from, to int, tx *database.Tx) (bool, error)
}

type DefenseStore interface {
	ListSectorForUpdate(ctx context.Context, sectorID int, tx *database.Tx) ([]defense.Stack, error)
	SaveQuantities(ctx context.Context, stacks []defense.Stack, tx *database.Tx) error
}

type EventRecorder interface {
	Record(ctx context.Context, e eventlog.Entry, tx *database.Tx) error
}

type Service struct {
	db       database.TxRunner
	ships    ShipStore
	sectors  SectorStore
	defenses DefenseStore
	events   EventRecorder
	resolver *combat.Resolver
	cfg      *config.GameConfig
	logger   *slog.Logger
}

func NewService(db database.TxRunner, ships ShipStore, sectors SectorStore, defenses DefenseStore, events EventRecorder, resolver *combat.Resolver, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing travel service")

	return &Service{
		db:       db,
		ships:    ships,
		sectors:  sectors,
		defenses: defenses,
		events:   events,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

type MoveReport struct {
	From      int                  `json:"from"`
	To        int                  `json:"to"`
	TurnsUsed int64                `json:"turns_used"`
	Mines     combat.MineOutcome   `json:"mines"`
	Fighters  combat.AmbushOutcome `json:"fighters"`
	Destroyed bool                 `json:"destroyed"`
	ArmorPts  int64                `json:"armor_pts"`
}

// Move warps a ship to a linked sector. Hostile mines are rolled first and
// hostile fighters then attack whatever survives.
func (s *Service) Move(ctx context.Context, shipID, destID int) (*MoveReport, error) {
	logger := s.logger.With("component", "travel_service", "operation", "move", "ship_id", shipID, "dest_id", destID)
	logger.Debug("Moving ship")

	var report *MoveReport
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, err := s.ships.GetShipForUpdate(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if sh == nil {
			return errors.NotFoundf("ship %d not found", shipID)
		}
		if sh.Destroyed {
			return errors.Preconditionf("your ship is destroyed")
		}
		if sh.SectorID == destID {
			return errors.Preconditionf("you are already in sector %d", destID)
		}

		linked, err := s.sectors.IsLinked(ctx, sh.SectorID, destID, tx)
		if err != nil {
			return err
		}
		if !linked {
			return errors.Preconditionf("sector %d is not linked to sector %d", destID, sh.SectorID)
		}
		dest, err := s.sectors.GetSector(ctx, destID, tx)
		if err != nil {
			return err
		}
		if dest == nil {
			return errors.NotFoundf("sector %d not found", destID)
		}

		class, err := ship.Class(s.cfg, sh.Class)
		if err != nil {
			return err
		}
		cost := ship.TurnCost(class, s.cfg.Game.MoveTurnCost)
		if sh.Turns < cost {
			return errors.Preconditionf("moving takes %d turns, you have %d", cost, sh.Turns)
		}
		sh.SpendTurns(cost)

		report = &MoveReport{From: sh.SectorID, To: destID, TurnsUsed: cost}
		sh.SectorID = destID
		sh.PlanetID = nil

		stacks, err := s.defenses.ListSectorForUpdate(ctx, destID, tx)
		if err != nil {
			return err
		}
		var mines []defense.Stack
		var fighters int64
		for _, st := range stacks {
			if !st.Hostile(sh.ID, sh.Team) {
				continue
			}
			if st.Type == defense.Mines {
				mines = append(mines, st)
			} else {
				fighters += st.Quantity
			}
		}

		report.Mines = s.resolver.Minefield(combat.MineEncounter{
			Starbase:   dest.IsStarbase,
			HullLevel:  sh.Equipment.Hull,
			Mines:      defense.Total(mines),
			Deflectors: sh.Devices.MineDeflectors,
		})
		if report.Mines.Deflected {
			sh.Devices.MineDeflectors--
		}
		if report.Mines.Hit {
			sh.ApplyDamage(report.Mines.Damage)
			if err := s.defenses.SaveQuantities(ctx, detonate(mines, report.Mines.MinesDestroyed), tx); err != nil {
				return err
			}
			if err := s.record(ctx, eventlog.KindMinefield, sh, report.Mines.Damage, tx); err != nil {
				return err
			}
		}

		if !sh.Destroyed {
			report.Fighters = s.resolver.SectorFighters(combat.AmbushEncounter{
				Starbase: dest.IsStarbase,
				Fighters: fighters,
				Shields:  sh.Equipment.Shields,
			})
			if report.Fighters.Attacked {
				sh.ApplyDamage(report.Fighters.Damage)
				if err := s.record(ctx, eventlog.KindAmbush, sh, report.Fighters.Damage, tx); err != nil {
					return err
				}
			}
		}

		report.Destroyed = sh.Destroyed
		report.ArmorPts = sh.ArmorPts
		return s.ships.UpdateShip(ctx, sh, tx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Ship moved", "from", report.From, "to", report.To, "destroyed", report.Destroyed)
	return report, nil
}

func (s *Service) record(ctx context.Context, kind string, sh *ship.Ship, damage int64, tx *database.Tx) error {
	outcome := "damaged"
	if sh.Destroyed {
		outcome = "destroyed"
	}
	return s.events.Record(ctx, eventlog.Entry{
		Kind:     kind,
		ShipID:   sh.ID,
		SectorID: sh.SectorID,
		Outcome:  outcome,
		Damage:   damage,
	}, tx)
}

// detonate removes count mines, emptying the largest stack first, and
// returns the updated stacks.
func detonate(stacks []defense.Stack, count int64) []defense.Stack {
	out := slices.Clone(stacks)
	slices.SortStableFunc(out, func(a, b defense.Stack) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	for i := range out {
		if count <= 0 {
			break
		}
		removed := min(out[i].Quantity, count)
		out[i].Quantity -= removed
		count -= removed
	}
	return out
}
