package market

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"traders-server/internal/sector"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *database.Tx) error) error {
	return fn(nil)
}

type fakeShips map[int]*ship.Ship

func (f fakeShips) GetShip(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error) {
	s, ok := f[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f fakeShips) GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error) {
	return f.GetShip(ctx, id, tx)
}

func (f fakeShips) UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error {
	cp := *s
	f[s.ID] = &cp
	return nil
}

type fakePorts map[int]*sector.Sector

func (f fakePorts) GetSector(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error) {
	s, ok := f[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f fakePorts) GetSectorForUpdate(ctx context.Context, id int, tx *database.Tx) (*sector.Sector, error) {
	return f.GetSector(ctx, id, tx)
}

func (f fakePorts) UpdatePort(ctx context.Context, s *sector.Sector, tx *database.Tx) error {
	cp := *s
	f[s.ID] = &cp
	return nil
}

func newTestService(ships fakeShips, ports fakePorts) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(fakeTx{}, ships, ports, config.DefaultGameConfig(), logger)
}

func orePort(stock int64) *sector.Sector {
	return &sector.Sector{ID: 5, PortType: sector.PortOre, Ore: stock, Organics: 1000}
}

func TestBuy(t *testing.T) {
	ships := fakeShips{1: {ID: 1, Class: config.ClassBalanced, SectorID: 5, Credits: 10_000}}
	ports := fakePorts{5: orePort(100_000_000)}
	svc := newTestService(ships, ports)

	trade, err := svc.Buy(context.Background(), 1, config.CommodityOre, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trade.UnitPrice != 11 || trade.Total != 550 {
		t.Errorf("trade = %+v, want 50 at 11", trade)
	}
	if got := ships[1]; got.Ore != 50 || got.Credits != 9450 {
		t.Errorf("ship ore=%d credits=%d, want 50 and 9450", got.Ore, got.Credits)
	}
	if got := ports[5].Ore; got != 100_000_000-50 {
		t.Errorf("port ore = %d", got)
	}
}

func TestBuyRejections(t *testing.T) {
	tests := []struct {
		name      string
		ship      ship.Ship
		commodity string
		amount    int64
		want      errors.ErrorType
	}{
		{"unknown commodity", ship.Ship{Credits: 1000}, "spice", 1, errors.ErrorTypeValidation},
		{"zero amount", ship.Ship{Credits: 1000}, config.CommodityOre, 0, errors.ErrorTypeValidation},
		{"port does not sell", ship.Ship{Credits: 1000}, config.CommodityGoods, 1, errors.ErrorTypePrecondition},
		{"not enough credits", ship.Ship{Credits: 10}, config.CommodityOre, 50, errors.ErrorTypePrecondition},
		{"holds full", ship.Ship{Credits: 100_000, Goods: 100}, config.CommodityOre, 1, errors.ErrorTypePrecondition},
		{"port short on stock", ship.Ship{Credits: 100_000_000}, config.CommodityOre, 2000, errors.ErrorTypePrecondition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.ship
			s.ID, s.Class, s.SectorID = 1, config.ClassBalanced, 5
			ships := fakeShips{1: &s}
			ports := fakePorts{5: orePort(1000)}
			svc := newTestService(ships, ports)

			_, err := svc.Buy(context.Background(), 1, tc.commodity, tc.amount)
			if errors.GetType(err) != tc.want {
				t.Fatalf("error = %v, want %s", err, tc.want)
			}
			if ports[5].Ore != 1000 || ships[1].Credits != s.Credits {
				t.Errorf("state changed after rejected trade")
			}
		})
	}
}

func TestSellAwardsSkillPoints(t *testing.T) {
	ships := fakeShips{1: {ID: 1, Class: config.ClassMerchant, SectorID: 5, Organics: 10_000, Equipment: ship.Equipment{Hull: 10}}}
	ports := fakePorts{5: orePort(0)}
	svc := newTestService(ships, ports)

	trade, err := svc.Sell(context.Background(), 1, config.CommodityOrganics, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A near-empty organics stock prices at 6.
	if trade.UnitPrice != 6 || trade.Total != 60_000 || trade.SkillPoints != 1 {
		t.Errorf("trade = %+v", trade)
	}
	if got := ships[1]; got.Organics != 0 || got.Credits != 60_000 || got.Skills.Points != 1 {
		t.Errorf("ship after sale: organics=%d credits=%d points=%d", got.Organics, got.Credits, got.Skills.Points)
	}
	if got := ports[5].Organics; got != 11_000 {
		t.Errorf("port organics = %d, want 11000", got)
	}
}

func TestSellRejectsUnwantedCommodity(t *testing.T) {
	ships := fakeShips{1: {ID: 1, Class: config.ClassBalanced, SectorID: 5, Energy: 10}}
	svc := newTestService(ships, fakePorts{5: orePort(0)})

	_, err := svc.Sell(context.Background(), 1, config.CommodityEnergy, 5)
	if errors.GetType(err) != errors.ErrorTypePrecondition {
		t.Fatalf("error = %v, want precondition", err)
	}
}
