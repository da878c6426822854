package combat

import (
	"context"
	"log/slog"

	"traders-server/internal/defense"
	"traders-server/internal/eventlog"
	"traders-server/internal/planet"
	"traders-server/internal/sector"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type ShipStore interface {
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	GetShipsForUpdate(ctx context.Context, ids []int, tx *database.Tx) (map[int]*ship.Ship, error)
	UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error
}

type SectorStore interface {
	GetSector(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error)
	Neighbors(ctx context.Context, id int, tx *database.Tx) ([]int, error)
}

type PlanetStore interface {
	GetPlanetForUpdate(ctx context.Context, id int, tx *database.Tx) (*planet.Planet, error)
	UpdatePlanet(ctx context.Context, p *planet.Planet, tx *database.Tx) error
}

type DefenseStore interface {
	ListSectorForUpdate(ctx context.Context, sectorID int, tx *database.Tx) ([]defense.Stack, error)
	GetStackForUpdate(ctx context.Context, id int, tx *database.Tx) (*defense.Stack, error)
	AddToStack(ctx context.Context, shipID, sectorID int, t defense.Type, quantity int64, tx *database.Tx) (*defense.Stack, error)
	SaveQuantities(ctx context.Context, stacks []defense.Stack, tx *database.Tx) error
	DeleteStack(ctx context.Context, id int, tx *database.Tx) error
}

// BountyCollector pays out and clears the bounties on a destroyed ship.
type BountyCollector interface {
	CollectBounties(ctx context.Context, targetShipID int, tx *database.Tx) (int64, error)
}

type EventRecorder interface {
	Record(ctx context.Context, e eventlog.Entry, tx *database.Tx) error
}

type Stores struct {
	Ships    ShipStore
	Sectors  SectorStore
	Planets  PlanetStore
	Defenses DefenseStore
	Bounties BountyCollector
	Events   EventRecorder
}

type Service struct {
	db       database.TxRunner
	stores   Stores
	resolver *Resolver
	rng      Roller
	cfg      *config.GameConfig
	logger   *slog.Logger
}

func NewService(db database.TxRunner, stores Stores, cfg *config.GameConfig, rng Roller, logger *slog.Logger) *Service {
	logger.Debug("Initializing combat service")

	return &Service{
		db:       db,
		stores:   stores,
		resolver: NewResolver(cfg, rng),
		rng:      rng,
		cfg:      cfg,
		logger:   logger,
	}
}

type ShipAttackReport struct {
	ShipOutcome
	EmergencyWarp bool  `json:"emergency_warp"`
	WarpedTo      int   `json:"warped_to,omitempty"`
	TurnsUsed     int64 `json:"turns_used"`
	KillReward    int64 `json:"kill_reward"`
	Bounty        int64 `json:"bounty"`
	SkillPoints   int64 `json:"skill_points"`
}

// AttackShip attacks another ship in the same sector.
func (s *Service) AttackShip(ctx context.Context, attackerID, targetID int) (*ShipAttackReport, error) {
	logger := s.logger.With("component", "combat_service", "operation", "attack_ship",
		"attacker_id", attackerID, "target_id", targetID)
	logger.Debug("Attacking ship")

	if attackerID == targetID {
		return nil, errors.Validation("you cannot attack yourself")
	}

	var report *ShipAttackReport
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		ships, err := s.stores.Ships.GetShipsForUpdate(ctx, []int{attackerID, targetID}, tx)
		if err != nil {
			return err
		}
		attacker, ok := ships[attackerID]
		if !ok {
			return errors.NotFoundf("ship %d not found", attackerID)
		}
		target, ok := ships[targetID]
		if !ok {
			return errors.NotFoundf("ship %d not found", targetID)
		}

		switch {
		case attacker.Destroyed:
			return errors.Preconditionf("your ship is destroyed")
		case target.Destroyed:
			return errors.Preconditionf("target is already destroyed")
		case target.SectorID != attacker.SectorID:
			return errors.Preconditionf("target is not in your sector")
		case target.PlanetID != nil:
			return errors.Preconditionf("target is landed on a planet")
		case attacker.SameTeam(target):
			return errors.Preconditionf("you cannot attack your team members")
		}
		if err := s.requireCombatSector(ctx, attacker.SectorID, tx); err != nil {
			return err
		}

		turns, err := s.chargeTurns(attacker, s.cfg.Combat.AttackShipTurns)
		if err != nil {
			return err
		}

		attackerC, err := NewCombatant(s.cfg, attacker)
		if err != nil {
			return err
		}
		targetC, err := NewCombatant(s.cfg, target)
		if err != nil {
			return err
		}

		report = &ShipAttackReport{TurnsUsed: turns}
		entry := eventlog.Entry{
			Kind:         eventlog.KindAttackShip,
			ShipID:       attacker.ID,
			TargetShipID: &target.ID,
			SectorID:     attacker.SectorID,
		}

		if !s.resolver.CanEscape(attackerC, targetC) && target.Devices.EmergencyWarp > 0 {
			to, err := s.randomNeighbor(ctx, target.SectorID, tx)
			if err != nil {
				return err
			}
			if to != 0 {
				target.SectorID = to
				target.Devices.EmergencyWarp--
				report.EmergencyWarp = true
				report.WarpedTo = to
				report.Message = "Target activated an emergency warp drive and escaped."
				entry.Outcome = "emergency_warp"
				entry.Details = map[string]any{"warped_to": to}
				return s.saveShipsAndLog(ctx, entry, tx, attacker, target)
			}
		}

		out := s.resolver.ShipVsShip(attackerC, targetC)
		report.ShipOutcome = out
		if out.Escaped {
			entry.Outcome = "escaped"
			return s.saveShipsAndLog(ctx, entry, tx, attacker)
		}

		attacker.Torps -= out.TorpsFired
		attacker.Fighters = max(0, attacker.Fighters-out.AttackerFightersLost)
		target.Fighters = max(0, target.Fighters-out.DefenderFightersLost)
		applyDamage(attacker, out.DamageToAttacker, out.AttackerDestroyed)
		applyDamage(target, out.DamageToDefender, out.DefenderDestroyed)

		entry.Outcome = "damaged"
		entry.Damage = out.DamageToDefender
		if out.DefenderDestroyed {
			entry.Outcome = "destroyed"

			report.KillReward = int64(float64(target.Score) * s.cfg.Combat.KillReward)
			report.Bounty, err = s.stores.Bounties.CollectBounties(ctx, target.ID, tx)
			if err != nil {
				return err
			}
			report.SkillPoints = min(s.cfg.Combat.KillSkillPointsMax, max(s.cfg.Combat.KillSkillPointsMin, target.Score/20))

			attacker.Credits += report.KillReward + report.Bounty
			attacker.Skills.Points += int(report.SkillPoints)
		}
		entry.Details = map[string]any{
			"torps_fired":        out.TorpsFired,
			"damage_to_attacker": out.DamageToAttacker,
			"kill_reward":        report.KillReward,
			"bounty":             report.Bounty,
		}

		return s.saveShipsAndLog(ctx, entry, tx, attacker, target)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Ship attack resolved",
		"escaped", report.Escaped,
		"emergency_warp", report.EmergencyWarp,
		"damage", report.DamageToDefender,
		"destroyed", report.DefenderDestroyed)
	return report, nil
}

type PlanetAttackReport struct {
	PlanetOutcome
	TurnsUsed   int64 `json:"turns_used"`
	SkillPoints int64 `json:"skill_points"`
}

// AttackPlanet assaults a planet orbiting the attacker's sector.
func (s *Service) AttackPlanet(ctx context.Context, shipID, planetID int) (*PlanetAttackReport, error) {
	logger := s.logger.With("component", "combat_service", "operation", "attack_planet",
		"ship_id", shipID, "planet_id", planetID)
	logger.Debug("Attacking planet")

	var report *PlanetAttackReport
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		attacker, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}
		p, err := s.stores.Planets.GetPlanetForUpdate(ctx, planetID, tx)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.NotFoundf("planet %d not found", planetID)
		}
		if p.SectorID != attacker.SectorID {
			return errors.Preconditionf("planet is not in your sector")
		}
		if err := s.requireCombatSector(ctx, attacker.SectorID, tx); err != nil {
			return err
		}

		attackerC, err := NewCombatant(s.cfg, attacker)
		if err != nil {
			return err
		}
		if p.Owner.Is(attacker.ID) {
			return errors.Validation("you cannot attack your own planet")
		}
		turns, err := s.chargeTurns(attacker, s.cfg.Combat.AttackPlanetTurns)
		if err != nil {
			return err
		}

		out, err := s.resolver.ShipVsPlanet(attackerC, NewPlanetTarget(p))
		if err != nil {
			return err
		}
		report = &PlanetAttackReport{PlanetOutcome: out, TurnsUsed: turns}

		attacker.Torps -= out.TorpsFired
		attacker.Fighters = max(0, attacker.Fighters-out.ShipFightersLost)
		p.Fighters = max(0, p.Fighters-out.PlanetFightersLost)
		applyDamage(attacker, out.DamageToShip, out.ShipDestroyed)

		switch out.Result {
		case PlanetBaseDestroyed:
			p.Base = false
		case PlanetCaptured:
			p.Owner = planet.OwnedBy(attacker.ID)
			report.SkillPoints = s.cfg.Combat.CaptureSkillPoints
			attacker.Skills.Points += int(report.SkillPoints)
		}

		if err := s.stores.Planets.UpdatePlanet(ctx, p, tx); err != nil {
			return err
		}
		return s.saveShipsAndLog(ctx, eventlog.Entry{
			Kind:           eventlog.KindAttackPlanet,
			ShipID:         attacker.ID,
			TargetPlanetID: &p.ID,
			SectorID:       p.SectorID,
			Outcome:        string(out.Result),
			Damage:         out.Damage,
			Details: map[string]any{
				"defense":        out.Defense,
				"damage_to_ship": out.DamageToShip,
			},
		}, tx, attacker)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Planet attack resolved", "result", report.Result, "damage", report.Damage)
	return report, nil
}

type DeployReport struct {
	Stack          defense.Stack `json:"stack"`
	Combat         bool          `json:"combat"`
	FriendlyLosses int64         `json:"friendly_losses"`
	HostileLosses  int64         `json:"hostile_losses"`
}

// DeployDefense leaves fighters or mines in the ship's sector. Mines are
// laid from the ship's torpedoes. New stacks immediately engage hostile ones.
func (s *Service) DeployDefense(ctx context.Context, shipID int, t defense.Type, quantity int64) (*DeployReport, error) {
	logger := s.logger.With("component", "combat_service", "operation", "deploy_defense",
		"ship_id", shipID, "type", t, "quantity", quantity)
	logger.Debug("Deploying defense")

	if !t.IsValid() {
		return nil, errors.Validationf("unknown defense type %q", t)
	}
	if quantity <= 0 {
		return nil, errors.Validation("quantity must be positive")
	}

	var report *DeployReport
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if err := s.requireCombatSector(ctx, sh.SectorID, tx); err != nil {
			return err
		}

		source := &sh.Fighters
		if t == defense.Mines {
			source = &sh.Torps
		}
		if *source < quantity {
			return errors.Preconditionf("you only carry %d", *source)
		}
		*source -= quantity

		stack, err := s.stores.Defenses.AddToStack(ctx, sh.ID, sh.SectorID, t, quantity, tx)
		if err != nil {
			return err
		}
		report = &DeployReport{Stack: *stack}

		stacks, err := s.stores.Defenses.ListSectorForUpdate(ctx, sh.SectorID, tx)
		if err != nil {
			return err
		}
		var friendly, hostile []defense.Stack
		for _, st := range stacks {
			switch {
			case st.ShipID == sh.ID:
				friendly = append(friendly, st)
			case st.Hostile(sh.ID, sh.Team):
				hostile = append(hostile, st)
			}
		}

		if len(friendly) > 0 && len(hostile) > 0 {
			out := s.resolver.DefenseVsDefense(friendly, hostile)
			if err := s.stores.Defenses.SaveQuantities(ctx, append(out.Friendly, out.Hostile...), tx); err != nil {
				return err
			}
			report.Combat = true
			report.FriendlyLosses = out.FriendlyLosses
			report.HostileLosses = out.HostileLosses
			for _, st := range out.Friendly {
				if st.ID == stack.ID {
					report.Stack.Quantity = st.Quantity
				}
			}
		}

		if err := s.stores.Ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
		return s.stores.Events.Record(ctx, eventlog.Entry{
			Kind:     eventlog.KindDeploy,
			ShipID:   sh.ID,
			SectorID: sh.SectorID,
			Outcome:  string(t),
			Details: map[string]any{
				"quantity":        quantity,
				"friendly_losses": report.FriendlyLosses,
				"hostile_losses":  report.HostileLosses,
			},
		}, tx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Defense deployed", "stack_id", report.Stack.ID, "combat", report.Combat)
	return report, nil
}

// RetrieveDefense returns a whole stack to the ship that deployed it.
func (s *Service) RetrieveDefense(ctx context.Context, shipID, stackID int) (*defense.Stack, error) {
	logger := s.logger.With("component", "combat_service", "operation", "retrieve_defense",
		"ship_id", shipID, "stack_id", stackID)

	var result *defense.Stack
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, err := s.lockActive(ctx, shipID, tx)
		if err != nil {
			return err
		}
		stack, err := s.stores.Defenses.GetStackForUpdate(ctx, stackID, tx)
		if err != nil {
			return err
		}
		if stack == nil {
			return errors.NotFoundf("defense %d not found", stackID)
		}
		if stack.ShipID != sh.ID {
			return errors.Forbiddenf("defense %d is not yours", stackID)
		}
		if stack.SectorID != sh.SectorID {
			return errors.Preconditionf("defense %d is in sector %d", stackID, stack.SectorID)
		}

		class, err := ship.Class(s.cfg, sh.Class)
		if err != nil {
			return err
		}
		caps := ship.CapacitiesFor(s.cfg, class, sh.Equipment)

		target, capacity := &sh.Fighters, caps.Fighters
		if stack.Type == defense.Mines {
			target, capacity = &sh.Torps, caps.Torps
		}
		if *target+stack.Quantity > capacity {
			return errors.Preconditionf("room for %d more, stack holds %d", max(0, capacity-*target), stack.Quantity)
		}
		*target += stack.Quantity

		if err := s.stores.Defenses.DeleteStack(ctx, stack.ID, tx); err != nil {
			return err
		}
		if err := s.stores.Ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
		result = stack
		return s.stores.Events.Record(ctx, eventlog.Entry{
			Kind:     eventlog.KindRetrieve,
			ShipID:   sh.ID,
			SectorID: sh.SectorID,
			Outcome:  string(stack.Type),
			Details:  map[string]any{"quantity": stack.Quantity},
		}, tx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Defense retrieved", "quantity", result.Quantity)
	return result, nil
}

func (s *Service) lockActive(ctx context.Context, shipID int, tx *database.Tx) (*ship.Ship, error) {
	sh, err := s.stores.Ships.GetShipForUpdate(ctx, shipID, tx)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, errors.NotFoundf("ship %d not found", shipID)
	}
	if sh.Destroyed {
		return nil, errors.Preconditionf("your ship is destroyed")
	}
	return sh, nil
}

// requireCombatSector rejects hostile actions inside starbase sectors.
func (s *Service) requireCombatSector(ctx context.Context, sectorID int, tx *database.Tx) error {
	sec, err := s.stores.Sectors.GetSector(ctx, sectorID, tx)
	if err != nil {
		return err
	}
	if sec == nil {
		return errors.NotFoundf("sector %d not found", sectorID)
	}
	if sec.IsStarbase {
		return errors.Preconditionf("combat is not allowed in starbase sectors")
	}
	return nil
}

func (s *Service) chargeTurns(sh *ship.Ship, base int64) (int64, error) {
	class, err := ship.Class(s.cfg, sh.Class)
	if err != nil {
		return 0, err
	}
	cost := ship.TurnCost(class, base)
	if sh.Turns < cost {
		return 0, errors.Preconditionf("this takes %d turns, you have %d", cost, sh.Turns)
	}
	sh.SpendTurns(cost)
	return cost, nil
}

// randomNeighbor picks a linked sector, or 0 when there is none.
func (s *Service) randomNeighbor(ctx context.Context, sectorID int, tx *database.Tx) (int, error) {
	neighbors, err := s.stores.Sectors.Neighbors(ctx, sectorID, tx)
	if err != nil {
		return 0, err
	}
	if len(neighbors) == 0 {
		return 0, nil
	}
	return neighbors[s.rng.IntN(len(neighbors))], nil
}

func (s *Service) saveShipsAndLog(ctx context.Context, entry eventlog.Entry, tx *database.Tx, ships ...*ship.Ship) error {
	for _, sh := range ships {
		if err := s.stores.Ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
	}
	return s.stores.Events.Record(ctx, entry, tx)
}

// applyDamage removes armor points. A ship the resolver declared destroyed is
// destroyed even when armor points remain.
func applyDamage(sh *ship.Ship, damage int64, destroyed bool) {
	sh.ApplyDamage(damage)
	if destroyed {
		sh.ArmorPts = 0
		sh.Destroyed = true
	}
}
