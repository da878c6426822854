package ship

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *database.Tx) error) error {
	return fn(nil)
}

type fakeStore struct {
	ships  map[int]*Ship
	nextID int
}

func newFakeStore(ships ...*Ship) *fakeStore {
	st := &fakeStore{ships: make(map[int]*Ship), nextID: 100}
	for _, s := range ships {
		st.ships[s.ID] = s
	}
	return st
}

func (f *fakeStore) GetShip(ctx context.Context, id int, tx *database.Tx) (*Ship, error) {
	s, ok := f.ships[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*Ship, error) {
	return f.GetShip(ctx, id, tx)
}

func (f *fakeStore) CreateShip(ctx context.Context, s *Ship, tx *database.Tx) error {
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.ships[s.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateShip(ctx context.Context, s *Ship, tx *database.Tx) error {
	cp := *s
	f.ships[s.ID] = &cp
	return nil
}

type fakeAccounts struct {
	opened []int
}

func (f *fakeAccounts) OpenAccount(ctx context.Context, shipID int, tx *database.Tx) error {
	f.opened = append(f.opened, shipID)
	return nil
}

func newTestService(store *fakeStore, accounts *fakeAccounts) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(fakeTx{}, store, accounts, config.DefaultGameConfig(), logger)
}

func TestRegisterAppliesClassBonuses(t *testing.T) {
	store := newFakeStore()
	accounts := &fakeAccounts{}
	svc := newTestService(store, accounts)

	s, err := svc.Register(context.Background(), "Nostromo", config.ClassWarship)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Credits != 1000 || s.Turns != 150 || s.Torps != 10 || s.Fighters != 5 || s.Energy != 100 {
		t.Errorf("warship start = credits %d turns %d torps %d fighters %d energy %d",
			s.Credits, s.Turns, s.Torps, s.Fighters, s.Energy)
	}
	if s.ArmorPts != 10 || s.SectorID != 1 {
		t.Errorf("armor=%d sector=%d, want 10 and 1", s.ArmorPts, s.SectorID)
	}
	if len(accounts.opened) != 1 || accounts.opened[0] != s.ID {
		t.Errorf("bank accounts opened = %v, want [%d]", accounts.opened, s.ID)
	}
}

func TestRegisterRejectsUnknownClass(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeAccounts{})

	_, err := svc.Register(context.Background(), "Nostromo", "freighter")
	if errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestUpgradeRequiresCredits(t *testing.T) {
	store := newFakeStore(&Ship{ID: 1, Class: config.ClassBalanced, SectorID: 1, Credits: 999})
	svc := newTestService(store, &fakeAccounts{})

	_, err := svc.Upgrade(context.Background(), 1, Hull)
	if errors.GetType(err) != errors.ErrorTypePrecondition {
		t.Fatalf("error = %v, want precondition", err)
	}
	if got := store.ships[1]; got.Credits != 999 || got.Equipment.Hull != 0 {
		t.Errorf("ship changed after rejected upgrade: %+v", got)
	}

	store.ships[1].Credits = 1000
	view, err := svc.Upgrade(context.Background(), 1, Hull)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Equipment.Hull != 1 || view.Credits != 0 || view.Capacities.Holds != 150 {
		t.Errorf("after upgrade: hull=%d credits=%d holds=%d", view.Equipment.Hull, view.Credits, view.Capacities.Holds)
	}
}

func TestDowngradeBlockedByCargo(t *testing.T) {
	store := newFakeStore(&Ship{ID: 1, Class: config.ClassBalanced, SectorID: 1, Equipment: Equipment{Hull: 1}, Ore: 120})
	svc := newTestService(store, &fakeAccounts{})

	_, err := svc.Downgrade(context.Background(), 1, Hull)
	if errors.GetType(err) != errors.ErrorTypePrecondition {
		t.Fatalf("error = %v, want precondition", err)
	}
}

func TestRespawn(t *testing.T) {
	tests := []struct {
		name        string
		escapePod   bool
		wantCredits int64
	}{
		{"with escape pod", true, 50000},
		{"without escape pod", false, 3000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(&Ship{
				ID: 1, Class: config.ClassBalanced, SectorID: 42, Credits: 50000,
				Equipment: Equipment{Hull: 9, Beams: 4}, Destroyed: true,
				Devices: Devices{EscapePod: tc.escapePod},
			})
			svc := newTestService(store, &fakeAccounts{})

			s, err := svc.Respawn(context.Background(), 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Destroyed || s.SectorID != 1 || s.Equipment.Total() != 0 || s.Devices.EscapePod {
				t.Errorf("respawned ship not reset: %+v", s)
			}
			if s.Credits != tc.wantCredits {
				t.Errorf("credits = %d, want %d", s.Credits, tc.wantCredits)
			}
		})
	}
}

func TestRespawnRequiresDestroyedShip(t *testing.T) {
	store := newFakeStore(&Ship{ID: 1, Class: config.ClassBalanced})
	svc := newTestService(store, &fakeAccounts{})

	_, err := svc.Respawn(context.Background(), 1)
	if errors.GetType(err) != errors.ErrorTypePrecondition {
		t.Fatalf("error = %v, want precondition", err)
	}
}
