package planet

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Owner is the ship owning a planet. The zero value is an unowned planet and
// is stored as NULL.
type Owner struct {
	ShipID int
	Valid  bool
}

func OwnedBy(shipID int) Owner {
	return Owner{ShipID: shipID, Valid: true}
}

// Is reports whether the planet is owned by shipID.
func (o Owner) Is(shipID int) bool {
	return o.Valid && o.ShipID == shipID
}

func (o *Owner) Scan(value any) error {
	if value == nil {
		*o = Owner{}
		return nil
	}
	switch v := value.(type) {
	case int64:
		*o = OwnedBy(int(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into planet owner", value)
	}
}

func (o Owner) Value() (driver.Value, error) {
	if !o.Valid {
		return nil, nil
	}
	return int64(o.ShipID), nil
}

func (o Owner) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.ShipID)
}

// Production is the share of planet output, in percent, given to each
// product.
type Production struct {
	Ore      int `json:"ore"`
	Organics int `json:"organics"`
	Goods    int `json:"goods"`
	Energy   int `json:"energy"`
	Fighters int `json:"fighters"`
	Torps    int `json:"torps"`
}

func DefaultProduction() Production {
	return Production{Ore: 20, Organics: 20, Goods: 20, Energy: 20, Fighters: 10, Torps: 10}
}

func (p Production) Total() int {
	return p.Ore + p.Organics + p.Goods + p.Energy + p.Fighters + p.Torps
}

// Validate requires every share within [0, 100] and a total of exactly 100.
func (p Production) Validate() error {
	for _, v := range []int{p.Ore, p.Organics, p.Goods, p.Energy, p.Fighters, p.Torps} {
		if v < 0 || v > 100 {
			return fmt.Errorf("production shares must be between 0 and 100")
		}
	}
	if total := p.Total(); total != 100 {
		return fmt.Errorf("production shares must total 100, got %d", total)
	}
	return nil
}

type Planet struct {
	ID         int        `json:"id"`
	SectorID   int        `json:"sector_id"`
	Name       string     `json:"name"`
	Owner      Owner      `json:"owner_id"`
	Ore        int64      `json:"ore"`
	Organics   int64      `json:"organics"`
	Goods      int64      `json:"goods"`
	Energy     int64      `json:"energy"`
	Colonists  int64      `json:"colonists"`
	Credits    int64      `json:"credits"`
	Fighters   int64      `json:"fighters"`
	Torps      int64      `json:"torps"`
	Base       bool       `json:"base"`
	Production Production `json:"production"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
