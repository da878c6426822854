// Package valuation turns a player's holdings into a comparable score.
package valuation

import (
	"math"

	"traders-server/internal/planet"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
)

// Per-unit values shared by ship cargo and planet stockpiles.
const (
	oreValue       = 11
	organicsValue  = 5
	goodsValue     = 15
	energyValue    = 3
	colonistsValue = 5
	fighterValue   = 50
	torpValue      = 25
	armorValue     = 5

	equipmentUnit = 1000
)

// Assets is everything that counts towards a score.
type Assets struct {
	Ship    *ship.Ship
	Planets []planet.Planet
	// Bank is balance minus loan.
	Bank int64
}

// RawValue is the uncompressed worth of a.
func RawValue(cfg *config.GameConfig, a Assets) float64 {
	var raw float64
	if s := a.Ship; s != nil {
		raw += math.Pow(2, float64(s.Equipment.Total())) * equipmentUnit
		raw += float64(stockValue(s.Ore, s.Organics, s.Goods, s.Energy, s.Colonists, s.Fighters, s.Torps))
		raw += float64(s.ArmorPts*armorValue + s.Credits)
		raw += float64(deviceValue(cfg.Devices, s.Devices))
	}
	for _, p := range a.Planets {
		raw += float64(stockValue(p.Ore, p.Organics, p.Goods, p.Energy, p.Colonists, p.Fighters, p.Torps) + p.Credits)
	}
	raw += float64(a.Bank)
	return raw
}

// Score compresses the raw value with a square root.
func Score(cfg *config.GameConfig, a Assets) int64 {
	return int64(math.Round(math.Sqrt(math.Max(RawValue(cfg, a), 0))))
}

func stockValue(ore, organics, goods, energy, colonists, fighters, torps int64) int64 {
	return ore*oreValue + organics*organicsValue + goods*goodsValue + energy*energyValue +
		colonists*colonistsValue + fighters*fighterValue + torps*torpValue
}

func deviceValue(values config.DeviceValues, d ship.Devices) int64 {
	total := int64(d.Genesis)*values.Genesis +
		int64(d.EmergencyWarp)*values.EmergencyWarp +
		int64(d.WarpEditors)*values.WarpEditor
	if d.EscapePod {
		total += values.EscapePod
	}
	if d.FuelScoop {
		total += values.FuelScoop
	}
	if d.LSSD {
		total += values.LSSD
	}
	return total
}
