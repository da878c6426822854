package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Commodity keys used by the commodities table.
const (
	CommodityOre      = "ore"
	CommodityOrganics = "organics"
	CommodityGoods    = "goods"
	CommodityEnergy   = "energy"
)

// Ship class keys.
const (
	ClassScout    = "scout"
	ClassMerchant = "merchant"
	ClassWarship  = "warship"
	ClassBalanced = "balanced"
)

// Scheduler task keys.
const (
	TaskTurns        = "turns"
	TaskPorts        = "ports"
	TaskPlanets      = "planets"
	TaskInterest     = "interest"
	TaskRankings     = "rankings"
	TaskFighterDecay = "fighter_decay"
	TaskTow          = "tow"
	TaskCleanup      = "cleanup"
)

// Credit amounts up to 2^53 convert to float64 exactly, which keeps fee
// rounding precise.
const maxExactAmount = 1 << 53

// GameConfig is the balance table of a running game. It is loaded once at
// startup and must be treated as read-only afterwards.
type GameConfig struct {
	Game          GameRules                  `yaml:"game"`
	ShipClasses   map[string]ShipClassConfig `yaml:"ship_classes"`
	Commodities   map[string]CommodityConfig `yaml:"commodities"`
	PortColonists RegenConfig                `yaml:"port_colonists"`
	Planet        PlanetConfig               `yaml:"planet"`
	Scheduler     SchedulerConfig            `yaml:"scheduler"`
	Bank          BankConfig                 `yaml:"bank"`
	Combat        CombatConfig               `yaml:"combat"`
	Starbase      StarbaseConfig             `yaml:"starbase"`
	Skills        SkillsConfig               `yaml:"skills"`
	Upgrades      UpgradeConfig              `yaml:"upgrades"`
	Devices       DeviceValues               `yaml:"devices"`
	Rankings      RankingConfig              `yaml:"rankings"`
	Universe      UniverseConfig             `yaml:"universe"`
}

type GameRules struct {
	MaxTurns          int64  `yaml:"max_turns"`
	TurnsPerTick      int64  `yaml:"turns_per_tick"`
	ActiveWindowDays  int    `yaml:"active_window_days"`
	ProtectedSectorID int    `yaml:"protected_sector_id"`
	MoveTurnCost      int64  `yaml:"move_turn_cost"`
	StartArmor        int64  `yaml:"start_armor"`
	DefaultClass      string `yaml:"default_class"`
	LogRetentionDays  int    `yaml:"log_retention_days"`
}

type StartingBonus struct {
	Credits  int64 `yaml:"credits"`
	Turns    int64 `yaml:"turns"`
	Ore      int64 `yaml:"ore"`
	Organics int64 `yaml:"organics"`
	Goods    int64 `yaml:"goods"`
	Energy   int64 `yaml:"energy"`
	Fighters int64 `yaml:"fighters"`
	Torps    int64 `yaml:"torps"`
}

type ShipClassConfig struct {
	Name               string        `yaml:"name"`
	CargoMultiplier    float64       `yaml:"cargo_multiplier"`
	TurnCostMultiplier float64       `yaml:"turn_cost_multiplier"`
	CombatMultiplier   float64       `yaml:"combat_multiplier"`
	DefenseMultiplier  float64       `yaml:"defense_multiplier"`
	SpeedBonus         float64       `yaml:"speed_bonus"`
	Start              StartingBonus `yaml:"start"`
}

type CommodityConfig struct {
	BasePrice       int64   `yaml:"base_price"`
	Elasticity      int64   `yaml:"elasticity"`
	Capacity        int64   `yaml:"capacity"`
	RegenRate       float64 `yaml:"regen_rate"`
	ConsumptionRate float64 `yaml:"consumption_rate"`
}

type RegenConfig struct {
	Capacity  int64   `yaml:"capacity"`
	RegenRate float64 `yaml:"regen_rate"`
}

type PlanetConfig struct {
	MinColonists     int64 `yaml:"min_colonists"`
	ColonistsPerUnit int64 `yaml:"colonists_per_unit"`
	FighterDivisor   int64 `yaml:"fighter_divisor"`
	TorpDivisor      int64 `yaml:"torp_divisor"`
	MaxOre           int64 `yaml:"max_ore"`
	MaxOrganics      int64 `yaml:"max_organics"`
	MaxGoods         int64 `yaml:"max_goods"`
	MaxEnergy        int64 `yaml:"max_energy"`
	MaxFighters      int64 `yaml:"max_fighters"`
	MaxTorps         int64 `yaml:"max_torps"`
}

type SchedulerConfig struct {
	// Periods maps a task key to its interval in minutes.
	Periods      map[string]int `yaml:"periods"`
	MaxCatchUp   int64          `yaml:"max_catch_up"`
	FighterDecay float64        `yaml:"fighter_decay"`
}

type BankConfig struct {
	InterestRate float64 `yaml:"interest_rate"`
	LoanFee      float64 `yaml:"loan_fee"`
	LoanLimit    float64 `yaml:"loan_limit"`
	MinNetWorth  int64   `yaml:"min_net_worth"`
	TransferFee  float64 `yaml:"transfer_fee"`
	// MaxAmount bounds any single deposit, withdrawal, transfer or loan.
	MaxAmount    int64   `yaml:"max_amount"`
}

type CombatConfig struct {
	LevelFactor         float64 `yaml:"level_factor"`
	ShipTorpCap         int64   `yaml:"ship_torp_cap"`
	PlanetTorpCap       int64   `yaml:"planet_torp_cap"`
	ShipFighterCap      int64   `yaml:"ship_fighter_cap"`
	PlanetFighterCap    int64   `yaml:"planet_fighter_cap"`
	MineHitPerMine      int64   `yaml:"mine_hit_per_mine"`
	MineHitCap          int64   `yaml:"mine_hit_cap"`
	MineDamage          int64   `yaml:"mine_damage"`
	MaxMinesPerHit      int64   `yaml:"max_mines_per_hit"`
	MineImmuneBelowHull int     `yaml:"mine_immune_below_hull"`
	BaseDefense         int64   `yaml:"base_defense"`
	KillReward          float64 `yaml:"kill_reward"`
	AttackShipTurns     int64   `yaml:"attack_ship_turns"`
	AttackPlanetTurns   int64   `yaml:"attack_planet_turns"`
	KillSkillPointsMin  int64   `yaml:"kill_skill_points_min"`
	KillSkillPointsMax  int64   `yaml:"kill_skill_points_max"`
	CaptureSkillPoints  int64   `yaml:"capture_skill_points"`
}

type StarbaseConfig struct {
	MaxHullLevel int `yaml:"max_hull_level"`
}

type SkillsConfig struct {
	MaxLevel             int     `yaml:"max_level"`
	TradingPerLevel      float64 `yaml:"trading_per_level"`
	TradingCap           float64 `yaml:"trading_cap"`
	CombatPerLevel       float64 `yaml:"combat_per_level"`
	CombatCap            float64 `yaml:"combat_cap"`
	EngineeringPerLevel  float64 `yaml:"engineering_per_level"`
	EngineeringCap       float64 `yaml:"engineering_cap"`
	CreditsPerTradePoint int64   `yaml:"credits_per_trade_point"`
}

type UpgradeConfig struct {
	BaseCost int64 `yaml:"base_cost"`
	MaxLevel int   `yaml:"max_level"`
}

type DeviceValues struct {
	Genesis       int64 `yaml:"genesis"`
	EmergencyWarp int64 `yaml:"emergency_warp"`
	WarpEditor    int64 `yaml:"warp_editor"`
	EscapePod     int64 `yaml:"escape_pod"`
	FuelScoop     int64 `yaml:"fuel_scoop"`
	LSSD          int64 `yaml:"lssd"`
}

type RankingConfig struct {
	TopN int `yaml:"top_n"`
}

// UniverseConfig sizes the galaxy generated on first start.
type UniverseConfig struct {
	Sectors      int     `yaml:"sectors"`
	ExtraLinks   int     `yaml:"extra_links"`
	PlanetChance float64 `yaml:"planet_chance"`
	Seed         uint64  `yaml:"seed"`
}

// DefaultGameConfig returns the stock balance table.
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		Game: GameRules{
			MaxTurns:          2500,
			TurnsPerTick:      2,
			ActiveWindowDays:  30,
			ProtectedSectorID: 1,
			MoveTurnCost:      1,
			StartArmor:        10,
			DefaultClass:      ClassBalanced,
			LogRetentionDays:  30,
		},
		ShipClasses: map[string]ShipClassConfig{
			ClassScout: {
				Name: "Scout", CargoMultiplier: 0.7, TurnCostMultiplier: 0.5,
				CombatMultiplier: 0.8, DefenseMultiplier: 0.7, SpeedBonus: 1.5,
				Start: StartingBonus{Credits: 2000, Turns: 200, Ore: 5, Organics: 5, Goods: 5, Energy: 50, Fighters: 10},
			},
			ClassMerchant: {
				Name: "Merchant", CargoMultiplier: 2.0, TurnCostMultiplier: 1.2,
				CombatMultiplier: 0.6, DefenseMultiplier: 0.8, SpeedBonus: 0.8,
				Start: StartingBonus{Credits: 5000, Turns: 100, Ore: 20, Organics: 20, Goods: 20, Energy: 100, Fighters: 10},
			},
			ClassWarship: {
				Name: "Warship", CargoMultiplier: 0.6, TurnCostMultiplier: 1.5,
				CombatMultiplier: 1.5, DefenseMultiplier: 1.4, SpeedBonus: 0.9,
				Start: StartingBonus{Credits: 1000, Turns: 150, Energy: 100, Fighters: 5, Torps: 10},
			},
			ClassBalanced: {
				Name: "Balanced", CargoMultiplier: 1, TurnCostMultiplier: 1,
				CombatMultiplier: 1, DefenseMultiplier: 1, SpeedBonus: 1,
				Start: StartingBonus{Credits: 3000, Turns: 150, Ore: 10, Organics: 10, Goods: 10, Energy: 75, Fighters: 10},
			},
		},
		Commodities: map[string]CommodityConfig{
			CommodityOre:      {BasePrice: 11, Elasticity: 5, Capacity: 100_000_000, RegenRate: 0.05, ConsumptionRate: 0.02},
			CommodityOrganics: {BasePrice: 5, Elasticity: 2, Capacity: 100_000_000, RegenRate: 0.05, ConsumptionRate: 0.02},
			CommodityGoods:    {BasePrice: 15, Elasticity: 7, Capacity: 100_000_000, RegenRate: 0.05, ConsumptionRate: 0.02},
			CommodityEnergy:   {BasePrice: 3, Elasticity: 1, Capacity: 1_000_000_000, RegenRate: 0.05, ConsumptionRate: 0.02},
		},
		PortColonists: RegenConfig{Capacity: 100_000, RegenRate: 0.02},
		Planet: PlanetConfig{
			MinColonists:     100,
			ColonistsPerUnit: 100,
			FighterDivisor:   10,
			TorpDivisor:      20,
			MaxOre:           100_000_000,
			MaxOrganics:      100_000_000,
			MaxGoods:         100_000_000,
			MaxEnergy:        1_000_000_000,
			MaxFighters:      1_000_000,
			MaxTorps:         1_000_000,
		},
		Scheduler: SchedulerConfig{
			Periods: map[string]int{
				TaskTurns:        2,
				TaskPorts:        2,
				TaskPlanets:      2,
				TaskInterest:     2,
				TaskRankings:     30,
				TaskFighterDecay: 6,
				TaskTow:          2,
				TaskCleanup:      60,
			},
			MaxCatchUp:   720,
			FighterDecay: 0.01,
		},
		Bank: BankConfig{
			InterestRate: 0.001,
			LoanFee:      0.1,
			LoanLimit:    0.25,
			MinNetWorth:  10_000,
			TransferFee:  0.05,
			MaxAmount:    1_000_000_000_000_000,
		},
		Combat: CombatConfig{
			LevelFactor:         1.5,
			ShipTorpCap:         10,
			PlanetTorpCap:       20,
			ShipFighterCap:      100,
			PlanetFighterCap:    200,
			MineHitPerMine:      20,
			MineHitCap:          80,
			MineDamage:          500,
			MaxMinesPerHit:      3,
			MineImmuneBelowHull: 8,
			BaseDefense:         10_000,
			KillReward:          0.1,
			AttackShipTurns:     1,
			AttackPlanetTurns:   5,
			KillSkillPointsMin:  3,
			KillSkillPointsMax:  5,
			CaptureSkillPoints:  3,
		},
		Starbase: StarbaseConfig{MaxHullLevel: 5},
		Skills: SkillsConfig{
			MaxLevel:             100,
			TradingPerLevel:      0.5,
			TradingCap:           50,
			CombatPerLevel:       0.01,
			CombatCap:            1,
			EngineeringPerLevel:  0.4,
			EngineeringCap:       40,
			CreditsPerTradePoint: 50_000,
		},
		Upgrades: UpgradeConfig{BaseCost: 1000, MaxLevel: 54},
		Devices: DeviceValues{
			Genesis:       1_000_000,
			EmergencyWarp: 1_000_000,
			WarpEditor:    100_000,
			EscapePod:     100_000,
			FuelScoop:     100_000,
			LSSD:          10_000_000,
		},
		Rankings: RankingConfig{TopN: 100},
		Universe: UniverseConfig{Sectors: 1000, ExtraLinks: 1500, PlanetChance: 0.3},
	}
}

// LoadGameConfig decodes the YAML file at path over the defaults. A missing
// file yields the defaults.
func LoadGameConfig(path string) (*GameConfig, error) {
	logger := slog.With("component", "config", "operation", "load_game_config", "path", path)

	cfg := DefaultGameConfig()

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("Game config file not found, using defaults")
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}

	if err := ParseGameConfig(content, cfg); err != nil {
		return nil, err
	}

	logger.Info("Game config loaded", "ship_classes", len(cfg.ShipClasses), "commodities", len(cfg.Commodities))
	return cfg, nil
}

// ParseGameConfig decodes content into cfg and validates the result.
func ParseGameConfig(content []byte, cfg *GameConfig) error {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse game config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid game config: %w", err)
	}
	return nil
}

func (c *GameConfig) Validate() error {
	for _, key := range []string{CommodityOre, CommodityOrganics, CommodityGoods, CommodityEnergy} {
		commodity, ok := c.Commodities[key]
		if !ok {
			return fmt.Errorf("commodity %q is missing", key)
		}
		if commodity.Capacity <= 0 {
			return fmt.Errorf("commodity %q capacity must be positive", key)
		}
		if commodity.BasePrice < 1 || commodity.Elasticity < 0 {
			return fmt.Errorf("commodity %q has invalid pricing", key)
		}
		if !isRate(commodity.RegenRate) || !isRate(commodity.ConsumptionRate) {
			return fmt.Errorf("commodity %q rates must be within [0, 1]", key)
		}
	}

	if _, ok := c.ShipClasses[c.Game.DefaultClass]; !ok {
		return fmt.Errorf("default class %q is not defined", c.Game.DefaultClass)
	}
	for key, class := range c.ShipClasses {
		if class.CargoMultiplier <= 0 || class.TurnCostMultiplier <= 0 ||
			class.CombatMultiplier <= 0 || class.DefenseMultiplier <= 0 || class.SpeedBonus <= 0 {
			return fmt.Errorf("ship class %q multipliers must be positive", key)
		}
	}

	for _, task := range TaskOrder {
		if c.Scheduler.Periods[task] <= 0 {
			return fmt.Errorf("scheduler period for %q must be positive", task)
		}
	}
	if c.Scheduler.MaxCatchUp < 1 {
		return fmt.Errorf("scheduler max_catch_up must be at least 1")
	}
	if !isRate(c.Scheduler.FighterDecay) || !isRate(c.PortColonists.RegenRate) {
		return fmt.Errorf("decay and regeneration rates must be within [0, 1]")
	}

	if c.Bank.InterestRate < 0 || c.Bank.LoanFee < 0 || c.Bank.TransferFee < 0 || c.Bank.LoanLimit < 0 {
		return fmt.Errorf("bank rates must not be negative")
	}
	if c.Bank.LoanFee > 1 {
		return fmt.Errorf("bank loan_fee must not exceed 1")
	}
	if c.Bank.MaxAmount <= 0 || c.Bank.MaxAmount > maxExactAmount {
		return fmt.Errorf("bank max_amount must be within (0, %d]", int64(maxExactAmount))
	}

	if c.Combat.LevelFactor <= 1 {
		return fmt.Errorf("combat level_factor must be greater than 1")
	}
	if c.Combat.MineHitCap < 0 || c.Combat.MineHitCap > 100 {
		return fmt.Errorf("combat mine_hit_cap must be within [0, 100]")
	}
	if c.Combat.KillSkillPointsMin > c.Combat.KillSkillPointsMax {
		return fmt.Errorf("combat kill skill point range is inverted")
	}

	if c.Planet.ColonistsPerUnit < 1 || c.Planet.FighterDivisor < 1 || c.Planet.TorpDivisor < 1 {
		return fmt.Errorf("planet divisors must be at least 1")
	}

	if c.Game.MaxTurns < 1 || c.Game.TurnsPerTick < 0 {
		return fmt.Errorf("turn limits are invalid")
	}
	if c.Rankings.TopN < 1 {
		return fmt.Errorf("rankings top_n must be at least 1")
	}
	if c.Universe.Sectors < c.Game.ProtectedSectorID || c.Universe.ExtraLinks < 0 || !isRate(c.Universe.PlanetChance) {
		return fmt.Errorf("universe must contain the protected sector and use a planet chance within [0, 1]")
	}

	return nil
}

// TaskOrder is the order in which scheduler tasks run within one pass.
var TaskOrder = []string{
	TaskTurns,
	TaskPorts,
	TaskPlanets,
	TaskInterest,
	TaskFighterDecay,
	TaskTow,
	TaskRankings,
	TaskCleanup,
}

// Period returns the interval of a scheduler task.
func (c *GameConfig) Period(task string) time.Duration {
	return time.Duration(c.Scheduler.Periods[task]) * time.Minute
}

// Class returns the configuration of a ship class.
func (c *GameConfig) Class(key string) (ShipClassConfig, bool) {
	class, ok := c.ShipClasses[key]
	return class, ok
}

// LevelValue returns round(level_factor^level * base).
func (c *GameConfig) LevelValue(level int, base float64) int64 {
	return int64(math.Round(math.Pow(c.Combat.LevelFactor, float64(level)) * base))
}

func isRate(v float64) bool {
	return v >= 0 && v <= 1
}
