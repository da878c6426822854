package economy

import (
	"context"
	"io"
	"log/slog"
	"testing"
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

type fakeShips struct {
	ships   []ship.Ship
	updated []ship.Ship
	granted int64
}

func (f *fakeShips) GrantTurns(ctx context.Context, amount, maxTurns int64, activeSince time.Time, tx *database.Tx) (int64, error) {
	f.granted = amount
	return int64(len(f.ships)), nil
}

func (f *fakeShips) ListOversizedForUpdate(ctx context.Context, sectorID, maxHull int, tx *database.Tx) ([]ship.Ship, error) {
	var out []ship.Ship
	for _, s := range f.ships {
		if s.SectorID == sectorID && s.Equipment.Hull > maxHull && !s.Destroyed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShips) UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error {
	f.updated = append(f.updated, *s)
	return nil
}

type fakeSectors struct {
	ports     []sector.Sector
	saved     []sector.Sector
	neighbors []int
}

func (f *fakeSectors) ListPortsForUpdate(ctx context.Context, tx *database.Tx) ([]sector.Sector, error) {
	return append([]sector.Sector(nil), f.ports...), nil
}

func (f *fakeSectors) UpdatePortsBatch(ctx context.Context, sectors []sector.Sector, tx *database.Tx) error {
	f.saved = sectors
	return nil
}

func (f *fakeSectors) Neighbors(ctx context.Context, id int, tx *database.Tx) ([]int, error) {
	return f.neighbors, nil
}

type fakeAccounts struct {
	accounts []bank.Account
	saved    []bank.Account
}

func (f *fakeAccounts) ListPositiveForUpdate(ctx context.Context, tx *database.Tx) ([]bank.Account, error) {
	return append([]bank.Account(nil), f.accounts...), nil
}

func (f *fakeAccounts) UpdateBalancesBatch(ctx context.Context, accounts []bank.Account, tx *database.Tx) error {
	f.saved = accounts
	return nil
}

type fakeDefenses struct {
	stacks []defense.Stack
	saved  []defense.Stack
}

func (f *fakeDefenses) ListByTypeForUpdate(ctx context.Context, t defense.Type, tx *database.Tx) ([]defense.Stack, error) {
	var out []defense.Stack
	for _, s := range f.stacks {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDefenses) SaveQuantities(ctx context.Context, stacks []defense.Stack, tx *database.Tx) error {
	f.saved = stacks
	return nil
}

type fakeEvents struct {
	entries []eventlog.Entry
}

func (f *fakeEvents) Record(ctx context.Context, e eventlog.Entry, tx *database.Tx) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeEvents) DeleteOlderThan(ctx context.Context, cutoff time.Time, tx *database.Tx) (int64, error) {
	return 0, nil
}

type fakeRankings struct {
	published []ranking.Entry
}

func (f *fakeRankings) Rebuild(ctx context.Context, runID uuid.UUID, now time.Time, tx *database.Tx) ([]ranking.Entry, error) {
	return []ranking.Entry{{Rank: 1, ShipID: 1}}, nil
}

func (f *fakeRankings) Publish(ctx context.Context, entries []ranking.Entry) {
	f.published = entries
}

type fixedRoller int

func (r fixedRoller) IntN(n int) int { return int(r) % n }

func newTestTasks() *Tasks {
	return &Tasks{
		Ships:    &fakeShips{},
		Sectors:  &fakeSectors{},
		Accounts: &fakeAccounts{},
		Defenses: &fakeDefenses{},
		Events:   &fakeEvents{},
		Rankings: &fakeRankings{},
		Rng:      fixedRoller(1),
		Config:   config.DefaultGameConfig(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testRun(n int64) *Run {
	return &Run{ID: uuid.New(), Intervals: n, Now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTurnsTask(t *testing.T) {
	ts := newTestTasks()
	ships := &fakeShips{ships: []ship.Ship{{ID: 1}, {ID: 2}}}
	ts.Ships = ships

	if _, err := ts.turns(context.Background(), testRun(5), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ships.granted != 10 {
		t.Errorf("granted = %d, want 10", ships.granted)
	}
}

func TestPortsTaskSavesChangedPortsOnly(t *testing.T) {
	ts := newTestTasks()
	sectors := &fakeSectors{ports: []sector.Sector{
		{ID: 1, PortType: sector.PortOre, Ore: 1000, Organics: 1000, Goods: 1000},
		{ID: 2, PortType: sector.PortSpecial},
	}}
	ts.Sectors = sectors

	if _, err := ts.ports(context.Background(), testRun(1), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sectors.saved) != 1 || sectors.saved[0].ID != 1 {
		t.Fatalf("saved = %+v, want only port 1", sectors.saved)
	}
	if sectors.saved[0].Organics != 980 {
		t.Errorf("organics = %d, want 980", sectors.saved[0].Organics)
	}
}

func TestInterestTask(t *testing.T) {
	ts := newTestTasks()
	accounts := &fakeAccounts{accounts: []bank.Account{
		{ShipID: 1, Balance: 1_000_000},
		{ShipID: 2, Balance: 500},
	}}
	ts.Accounts = accounts

	if _, err := ts.interest(context.Background(), testRun(2), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts.saved) != 1 || accounts.saved[0].Balance != 1_002_001 {
		t.Errorf("saved = %+v", accounts.saved)
	}
}

func TestFighterDecayTask(t *testing.T) {
	ts := newTestTasks()
	defenses := &fakeDefenses{stacks: []defense.Stack{
		{ID: 1, Type: defense.Fighters, Quantity: 1000},
		{ID: 2, Type: defense.Fighters, Quantity: 1},
		{ID: 3, Type: defense.Mines, Quantity: 1000},
	}}
	ts.Defenses = defenses

	msg, err := ts.fighterDecay(context.Background(), testRun(1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defenses.saved) != 2 {
		t.Fatalf("saved %d stacks, want 2", len(defenses.saved))
	}
	if defenses.saved[0].Quantity != 990 || defenses.saved[1].Quantity != 0 {
		t.Errorf("quantities = %d, %d", defenses.saved[0].Quantity, defenses.saved[1].Quantity)
	}
	if msg != "decayed 2 fighter stacks, removed 1" {
		t.Errorf("message = %q", msg)
	}
}

func TestTowTask(t *testing.T) {
	ts := newTestTasks()
	ships := &fakeShips{ships: []ship.Ship{
		{ID: 1, SectorID: 1, Equipment: ship.Equipment{Hull: 6}, PlanetID: new(int)},
		{ID: 2, SectorID: 1, Equipment: ship.Equipment{Hull: 5}},
		{ID: 3, SectorID: 4, Equipment: ship.Equipment{Hull: 20}},
		{ID: 4, SectorID: 1, Equipment: ship.Equipment{Hull: 9}, Destroyed: true},
	}}
	sectors := &fakeSectors{neighbors: []int{2, 7, 9}}
	events := &fakeEvents{}
	ts.Ships, ts.Sectors, ts.Events = ships, sectors, events

	if _, err := ts.tow(context.Background(), testRun(1), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ships.updated) != 1 {
		t.Fatalf("towed %d ships, want 1", len(ships.updated))
	}
	towed := ships.updated[0]
	if towed.ID != 1 || towed.SectorID != 7 || towed.PlanetID != nil {
		t.Errorf("towed = id %d sector %d planet %v", towed.ID, towed.SectorID, towed.PlanetID)
	}
	if len(events.entries) != 1 || events.entries[0].Kind != eventlog.KindTow {
		t.Errorf("events = %+v", events.entries)
	}
}

func TestRankingsTaskPublishesAfterCommit(t *testing.T) {
	ts := newTestTasks()
	rankings := &fakeRankings{}
	ts.Rankings = rankings

	run := testRun(1)
	if _, err := ts.rankings(context.Background(), run, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rankings.published != nil {
		t.Fatal("published before commit")
	}
	for _, fn := range run.afterCommit {
		fn(context.Background())
	}
	if len(rankings.published) != 1 {
		t.Errorf("published = %+v", rankings.published)
	}
}

func TestPlanetsTask(t *testing.T) {
	ts := newTestTasks()
	planets := &fakePlanets{planets: []planet.Planet{
		{ID: 1, Owner: planet.OwnedBy(3), Colonists: 1000, Production: planet.Production{Ore: 100}},
	}}
	ts.Planets = planets

	if _, err := ts.planets(context.Background(), testRun(2), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(planets.saved) != 1 || planets.saved[0].Ore != 20 {
		t.Errorf("saved = %+v", planets.saved)
	}
}

type fakePlanets struct {
	planets []planet.Planet
	saved   []planet.Planet
}

func (f *fakePlanets) ListProducingForUpdate(ctx context.Context, minColonists int64, tx *database.Tx) ([]planet.Planet, error) {
	return append([]planet.Planet(nil), f.planets...), nil
}

func (f *fakePlanets) UpdateStockBatch(ctx context.Context, planets []planet.Planet, tx *database.Tx) error {
	f.saved = planets
	return nil
}
