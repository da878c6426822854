package economy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"traders-server/internal/bank"
	"traders-server/internal/defense"
	"traders-server/internal/eventlog"
	"traders-server/internal/planet"
	"traders-server/internal/ranking"
	"traders-server/internal/sector"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"

	"github.com/google/uuid"
)

type ShipStore interface {
	GrantTurns(ctx context.Context, amount, maxTurns int64, activeSince time.Time, tx *database.Tx) (int64, error)
	ListOversizedForUpdate(ctx context.Context, sectorID, maxHull int, tx *database.Tx) ([]ship.Ship, error)
	UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error
}

type SectorStore interface {
	ListPortsForUpdate(ctx context.Context, tx *database.Tx) ([]sector.Sector, error)
	UpdatePortsBatch(ctx context.Context, sectors []sector.Sector, tx *database.Tx) error
	Neighbors(ctx context.Context, id int, tx *database.Tx) ([]int, error)
}

type PlanetStore interface {
	ListProducingForUpdate(ctx context.Context, minColonists int64, tx *database.Tx) ([]planet.Planet, error)
	UpdateStockBatch(ctx context.Context, planets []planet.Planet, tx *database.Tx) error
}

type AccountStore interface {
	ListPositiveForUpdate(ctx context.Context, tx *database.Tx) ([]bank.Account, error)
	UpdateBalancesBatch(ctx context.Context, accounts []bank.Account, tx *database.Tx) error
}

type DefenseStore interface {
	ListByTypeForUpdate(ctx context.Context, t defense.Type, tx *database.Tx) ([]defense.Stack, error)
	SaveQuantities(ctx context.Context, stacks []defense.Stack, tx *database.Tx) error
}

type EventStore interface {
	Record(ctx context.Context, e eventlog.Entry, tx *database.Tx) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error)
}

type Rankings interface {
	Rebuild(ctx context.Context, runID uuid.UUID, now time.Time, tx *database.Tx) ([]ranking.Entry, error)
	Publish(ctx context.Context, entries []ranking.Entry)
}

// Pruner deletes rows recorded before cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error)
}

type Roller interface {
	IntN(n int) int
}

// Tasks holds the stores the scheduler task bodies work on.
type Tasks struct {
	Ships     ShipStore
	Sectors   SectorStore
	Planets   PlanetStore
	Accounts  AccountStore
	Defenses  DefenseStore
	Events    EventStore
	Rankings  Rankings
	TickRuns  Pruner
	Snapshots Pruner
	Rng       Roller
	Config    *config.GameConfig
	Logger    *slog.Logger
}

// RegisterAll binds every task body to t.
func (ts *Tasks) RegisterAll(t *Ticker) {
	t.Register(config.TaskTurns, ts.turns)
	t.Register(config.TaskPorts, ts.ports)
	t.Register(config.TaskPlanets, ts.planets)
	t.Register(config.TaskInterest, ts.interest)
	t.Register(config.TaskFighterDecay, ts.fighterDecay)
	t.Register(config.TaskTow, ts.tow)
	t.Register(config.TaskRankings, ts.rankings)
	t.Register(config.TaskCleanup, ts.cleanup)
}

func (ts *Tasks) turns(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	game := ts.Config.Game
	amount := game.TurnsPerTick * run.Intervals
	since := run.Now.AddDate(0, 0, -game.ActiveWindowDays)

	updated, err := ts.Ships.GrantTurns(ctx, amount, game.MaxTurns, since, tx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("granted %d turns to %d ships", amount, updated), nil
}

func (ts *Tasks) ports(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	ports, err := ts.Sectors.ListPortsForUpdate(ctx, tx)
	if err != nil {
		return "", err
	}

	changed := make([]sector.Sector, 0, len(ports))
	for i := range ports {
		if ProducePort(&ports[i], ts.Config, run.Intervals) {
			changed = append(changed, ports[i])
		}
	}

	if err := ts.Sectors.UpdatePortsBatch(ctx, changed, tx); err != nil {
		return "", err
	}
	return fmt.Sprintf("updated %d of %d ports", len(changed), len(ports)), nil
}

func (ts *Tasks) planets(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	cfg := ts.Config.Planet
	planets, err := ts.Planets.ListProducingForUpdate(ctx, cfg.MinColonists, tx)
	if err != nil {
		return "", err
	}

	changed := make([]planet.Planet, 0, len(planets))
	for i := range planets {
		if ProducePlanet(&planets[i], cfg, run.Intervals) {
			changed = append(changed, planets[i])
		}
	}

	if err := ts.Planets.UpdateStockBatch(ctx, changed, tx); err != nil {
		return "", err
	}
	return fmt.Sprintf("produced on %d planets", len(changed)), nil
}

func (ts *Tasks) interest(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	accounts, err := ts.Accounts.ListPositiveForUpdate(ctx, tx)
	if err != nil {
		return "", err
	}

	changed := make([]bank.Account, 0, len(accounts))
	for _, a := range accounts {
		next := AccrueInterest(a.Balance, ts.Config.Bank.InterestRate, run.Intervals)
		if next != a.Balance {
			a.Balance = next
			changed = append(changed, a)
		}
	}

	if err := ts.Accounts.UpdateBalancesBatch(ctx, changed, tx); err != nil {
		return "", err
	}
	return fmt.Sprintf("paid interest on %d accounts", len(changed)), nil
}

func (ts *Tasks) fighterDecay(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	stacks, err := ts.Defenses.ListByTypeForUpdate(ctx, defense.Fighters, tx)
	if err != nil {
		return "", err
	}

	changed := make([]defense.Stack, 0, len(stacks))
	removed := 0
	for _, s := range stacks {
		next := DecayFighters(s.Quantity, ts.Config.Scheduler.FighterDecay, run.Intervals)
		if next == s.Quantity {
			continue
		}
		if next == 0 {
			removed++
		}
		s.Quantity = next
		changed = append(changed, s)
	}

	if err := ts.Defenses.SaveQuantities(ctx, changed, tx); err != nil {
		return "", err
	}
	return fmt.Sprintf("decayed %d fighter stacks, removed %d", len(changed), removed), nil
}

// tow moves ships too large for the starbase to a random linked sector.
func (ts *Tasks) tow(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	home := ts.Config.Game.ProtectedSectorID
	maxHull := ts.Config.Starbase.MaxHullLevel

	ships, err := ts.Ships.ListOversizedForUpdate(ctx, home, maxHull, tx)
	if err != nil {
		return "", err
	}
	if len(ships) == 0 {
		return "no ships to tow", nil
	}

	neighbors, err := ts.Sectors.Neighbors(ctx, home, tx)
	if err != nil {
		return "", err
	}
	if len(neighbors) == 0 {
		return "", fmt.Errorf("sector %d has no links to tow ships to", home)
	}

	for i := range ships {
		sh := &ships[i]
		dest := neighbors[ts.Rng.IntN(len(neighbors))]

		sh.SectorID = dest
		sh.PlanetID = nil
		if err := ts.Ships.UpdateShip(ctx, sh, tx); err != nil {
			return "", err
		}

		err := ts.Events.Record(ctx, eventlog.Entry{
			Kind:     eventlog.KindTow,
			ShipID:   sh.ID,
			SectorID: dest,
			Outcome:  "towed",
			Details: map[string]any{
				"from_sector": home,
				"hull_level":  sh.Equipment.Hull,
				"max_hull":    maxHull,
				"run_id":      run.ID.String(),
			},
		}, tx)
		if err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("towed %d ships out of sector %d", len(ships), home), nil
}

func (ts *Tasks) rankings(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	entries, err := ts.Rankings.Rebuild(ctx, run.ID, run.Now, tx)
	if err != nil {
		return "", err
	}

	run.AfterCommit(func(ctx context.Context) {
		ts.Rankings.Publish(ctx, entries)
	})
	return fmt.Sprintf("ranked %d ships", len(entries)), nil
}

func (ts *Tasks) cleanup(ctx context.Context, run *Run, tx *database.Tx) (string, error) {
	cutoff := run.Now.AddDate(0, 0, -ts.Config.Game.LogRetentionDays)

	events, err := ts.Events.DeleteOlderThan(ctx, cutoff, tx)
	if err != nil {
		return "", err
	}
	runs, err := ts.TickRuns.DeleteOlderThan(ctx, cutoff, tx)
	if err != nil {
		return "", err
	}
	snapshots, err := ts.Snapshots.DeleteOlderThan(ctx, cutoff, tx)
	if err != nil {
		return "", err
	}

	ts.Logger.Debug("Cleanup finished", "component", "economy_tasks", "events", events, "tick_runs", runs, "snapshots", snapshots)
	return fmt.Sprintf("removed %d events, %d tick runs, %d snapshots", events, runs, snapshots), nil
}
