package planet

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *database.Tx) error) error {
	return fn(nil)
}

type fakeStore struct {
	planets map[int]*Planet
}

func (f *fakeStore) GetPlanet(ctx context.Context, id int, tx *database.Tx) (*Planet, error) {
	p, ok := f.planets[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPlanetForUpdate(ctx context.Context, id int, tx *database.Tx) (*Planet, error) {
	return f.GetPlanet(ctx, id, tx)
}

func (f *fakeStore) UpdatePlanet(ctx context.Context, p *Planet, tx *database.Tx) error {
	cp := *p
	f.planets[p.ID] = &cp
	return nil
}

func (f *fakeStore) CreatePlanetsBatch(ctx context.Context, planets []BatchInsertRequest, tx *database.Tx) (int, error) {
	return len(planets), nil
}

func TestSetProduction(t *testing.T) {
	store := &fakeStore{planets: map[int]*Planet{
		1: {ID: 1, Owner: OwnedBy(5), Production: DefaultProduction()},
		2: {ID: 2, Production: DefaultProduction()},
	}}
	svc := NewService(fakeTx{}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	want := Production{Ore: 40, Goods: 40, Fighters: 20}

	if _, err := svc.SetProduction(ctx, 5, 1, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.planets[1].Production != want {
		t.Errorf("production = %+v, want %+v", store.planets[1].Production, want)
	}

	tests := []struct {
		name     string
		shipID   int
		planetID int
		prod     Production
		wantType errors.ErrorType
	}{
		{"bad total", 5, 1, Production{Ore: 99}, errors.ErrorTypeValidation},
		{"not owner", 6, 1, want, errors.ErrorTypeForbidden},
		{"unowned planet", 5, 2, want, errors.ErrorTypeForbidden},
		{"missing planet", 5, 9, want, errors.ErrorTypeNotFound},
	}

	for _, tc := range tests {
		_, err := svc.SetProduction(ctx, tc.shipID, tc.planetID, tc.prod)
		if got := errors.GetType(err); got != tc.wantType {
			t.Errorf("%s: error type = %q, want %q (err %v)", tc.name, got, tc.wantType, err)
		}
	}
}
