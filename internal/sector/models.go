package sector

import (
	"time"

	"traders-server/internal/shared/config"
)

type PortType string

const (
	PortNone     PortType = "none"
	PortOre      PortType = "ore"
	PortOrganics PortType = "organics"
	PortGoods    PortType = "goods"
	PortEnergy   PortType = "energy"
	PortSpecial  PortType = "special"
)

func (p PortType) IsValid() bool {
	switch p {
	case PortNone, PortOre, PortOrganics, PortGoods, PortEnergy, PortSpecial:
		return true
	}
	return false
}

// Commodity returns the commodity a port of this type produces, if any.
func (p PortType) Commodity() (string, bool) {
	switch p {
	case PortOre:
		return config.CommodityOre, true
	case PortOrganics:
		return config.CommodityOrganics, true
	case PortGoods:
		return config.CommodityGoods, true
	case PortEnergy:
		return config.CommodityEnergy, true
	}
	return "", false
}

type Sector struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	PortType      PortType  `json:"port_type"`
	Ore           int64     `json:"port_ore"`
	Organics      int64     `json:"port_organics"`
	Goods         int64     `json:"port_goods"`
	Energy        int64     `json:"port_energy"`
	PortColonists int64     `json:"port_colonists"`
	IsStarbase    bool      `json:"is_starbase"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Stock returns the port inventory of a commodity.
func (s *Sector) Stock(commodity string) (int64, bool) {
	switch commodity {
	case config.CommodityOre:
		return s.Ore, true
	case config.CommodityOrganics:
		return s.Organics, true
	case config.CommodityGoods:
		return s.Goods, true
	case config.CommodityEnergy:
		return s.Energy, true
	}
	return 0, false
}

func (s *Sector) SetStock(commodity string, value int64) bool {
	switch commodity {
	case config.CommodityOre:
		s.Ore = value
	case config.CommodityOrganics:
		s.Organics = value
	case config.CommodityGoods:
		s.Goods = value
	case config.CommodityEnergy:
		s.Energy = value
	default:
		return false
	}
	return true
}

// Link is a one-way warp lane. Lanes are stored in both directions.
type Link struct {
	From int `json:"from"`
	To   int `json:"to"`
}
