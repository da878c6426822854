package ship

import (
	"math"

	"traders-server/internal/shared/config"
	"traders-server/internal/shared/errors"
)

// Class resolves a ship class key against the balance table.
func Class(cfg *config.GameConfig, key string) (config.ShipClassConfig, error) {
	class, ok := cfg.Class(key)
	if !ok {
		return config.ShipClassConfig{}, errors.Validationf("unknown ship class %q", key)
	}
	return class, nil
}

// TurnCost scales a base turn cost by the class multiplier. Every action
// costs at least one turn.
func TurnCost(class config.ShipClassConfig, base int64) int64 {
	return max(1, int64(float64(base)*class.TurnCostMultiplier))
}

// Capacities are the limits derived from equipment levels and class.
type Capacities struct {
	Holds    int64 `json:"holds"`
	Energy   int64 `json:"energy"`
	Fighters int64 `json:"fighters"`
	Torps    int64 `json:"torps"`
	Armor    int64 `json:"armor"`
}

const (
	holdsBase    = 100
	energyBase   = 500
	fightersBase = 100
	torpsBase    = 100
	armorBase    = 100
)

// CapacitiesFor computes capacities for the given equipment. Holds and energy
// scale with the class cargo multiplier.
func CapacitiesFor(cfg *config.GameConfig, class config.ShipClassConfig, e Equipment) Capacities {
	return Capacities{
		Holds:    scaled(cfg.LevelValue(e.Hull, holdsBase), class.CargoMultiplier),
		Energy:   scaled(cfg.LevelValue(e.Power, energyBase), class.CargoMultiplier),
		Fighters: cfg.LevelValue(e.Computer, fightersBase),
		Torps:    cfg.LevelValue(e.TorpLaunchers, torpsBase),
		Armor:    cfg.LevelValue(e.Armor, armorBase),
	}
}

func scaled(v int64, multiplier float64) int64 {
	return int64(float64(v) * multiplier)
}

// TradingBonus is the percentage discount on purchases and premium on sales.
func TradingBonus(cfg *config.GameConfig, level int) float64 {
	return math.Min(cfg.Skills.TradingCap, float64(level)*cfg.Skills.TradingPerLevel)
}

// CombatSkillMultiplier scales outgoing damage.
func CombatSkillMultiplier(cfg *config.GameConfig, level int) float64 {
	return 1 + math.Min(cfg.Skills.CombatCap, float64(level)*cfg.Skills.CombatPerLevel)
}

// EngineeringDiscount is the percentage taken off upgrade costs.
func EngineeringDiscount(cfg *config.GameConfig, level int) float64 {
	return math.Min(cfg.Skills.EngineeringCap, float64(level)*cfg.Skills.EngineeringPerLevel)
}

// SkillCost is the number of points needed to raise a skill from level.
func SkillCost(level int) int {
	return 1 + level/10
}

// UpgradeCost is the price of raising a component from level to level+1,
// before the engineering discount.
func UpgradeCost(cfg *config.GameConfig, level int) int64 {
	return int64(math.Round(float64(cfg.Upgrades.BaseCost) * math.Pow(cfg.Combat.LevelFactor, float64(level))))
}

// DiscountedUpgradeCost applies the engineering discount; the result is never
// below one credit.
func DiscountedUpgradeCost(cfg *config.GameConfig, level, engineering int) int64 {
	cost := float64(UpgradeCost(cfg, level)) * (1 - EngineeringDiscount(cfg, engineering)/100)
	return max(1, int64(math.Round(cost)))
}

// DowngradeRefund is what the shipyard pays back for removing one level.
func DowngradeRefund(cfg *config.GameConfig, level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(math.Round(float64(UpgradeCost(cfg, level-1)) / 2))
}
