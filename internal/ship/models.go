package ship

import (
	"time"

	"traders-server/internal/shared/config"
)

// Component is an upgradable piece of ship equipment.
type Component string

const (
	Hull          Component = "hull"
	Engines       Component = "engines"
	Power         Component = "power"
	Computer      Component = "computer"
	Sensors       Component = "sensors"
	Beams         Component = "beams"
	TorpLaunchers Component = "torp_launchers"
	Shields       Component = "shields"
	Armor         Component = "armor"
	Cloak         Component = "cloak"
)

var Components = []Component{Hull, Engines, Power, Computer, Sensors, Beams, TorpLaunchers, Shields, Armor, Cloak}

type Equipment struct {
	Hull          int `json:"hull"`
	Engines       int `json:"engines"`
	Power         int `json:"power"`
	Computer      int `json:"computer"`
	Sensors       int `json:"sensors"`
	Beams         int `json:"beams"`
	TorpLaunchers int `json:"torp_launchers"`
	Shields       int `json:"shields"`
	Armor         int `json:"armor"`
	Cloak         int `json:"cloak"`
}

func (e *Equipment) level(c Component) *int {
	switch c {
	case Hull:
		return &e.Hull
	case Engines:
		return &e.Engines
	case Power:
		return &e.Power
	case Computer:
		return &e.Computer
	case Sensors:
		return &e.Sensors
	case Beams:
		return &e.Beams
	case TorpLaunchers:
		return &e.TorpLaunchers
	case Shields:
		return &e.Shields
	case Armor:
		return &e.Armor
	case Cloak:
		return &e.Cloak
	}
	return nil
}

// Level returns the level of c, or false for an unknown component.
func (e Equipment) Level(c Component) (int, bool) {
	p := e.level(c)
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (e *Equipment) SetLevel(c Component, level int) bool {
	p := e.level(c)
	if p == nil {
		return false
	}
	*p = level
	return true
}

// Total is the sum of all component levels.
func (e Equipment) Total() int {
	return e.Hull + e.Engines + e.Power + e.Computer + e.Sensors +
		e.Beams + e.TorpLaunchers + e.Shields + e.Armor + e.Cloak
}

type Devices struct {
	Genesis        int  `json:"genesis"`
	EmergencyWarp  int  `json:"emergency_warp"`
	WarpEditors    int  `json:"warp_editors"`
	MineDeflectors int  `json:"mine_deflectors"`
	EscapePod      bool `json:"escape_pod"`
	FuelScoop      bool `json:"fuel_scoop"`
	LSSD           bool `json:"lssd"`
}

type Skills struct {
	Trading     int `json:"trading"`
	Combat      int `json:"combat"`
	Engineering int `json:"engineering"`
	Leadership  int `json:"leadership"`
	Points      int `json:"points"`
}

type Ship struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	Team      int       `json:"team"`
	SectorID  int       `json:"sector_id"`
	PlanetID  *int      `json:"planet_id"`
	Equipment Equipment `json:"equipment"`
	Ore       int64     `json:"ore"`
	Organics  int64     `json:"organics"`
	Goods     int64     `json:"goods"`
	Energy    int64     `json:"energy"`
	Colonists int64     `json:"colonists"`
	Fighters  int64     `json:"fighters"`
	Torps     int64     `json:"torps"`
	ArmorPts  int64     `json:"armor_pts"`
	Turns     int64     `json:"turns"`
	TurnsUsed int64     `json:"turns_used"`
	Credits   int64     `json:"credits"`
	Score     int64     `json:"score"`
	Devices   Devices   `json:"devices"`
	Skills    Skills    `json:"skills"`
	Destroyed bool      `json:"destroyed"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HoldsUsed counts cargo occupying holds. Energy has its own capacity.
func (s *Ship) HoldsUsed() int64 {
	return s.Ore + s.Organics + s.Goods + s.Colonists
}

// Cargo returns the amount of a tradable commodity aboard.
func (s *Ship) Cargo(commodity string) (int64, bool) {
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

// AddCargo adjusts a commodity by delta. Callers validate bounds first.
func (s *Ship) AddCargo(commodity string, delta int64) bool {
	switch commodity {
	case config.CommodityOre:
		s.Ore += delta
	case config.CommodityOrganics:
		s.Organics += delta
	case config.CommodityGoods:
		s.Goods += delta
	case config.CommodityEnergy:
		s.Energy += delta
	default:
		return false
	}
	return true
}

// SpendTurns deducts n turns and records them as used.
func (s *Ship) SpendTurns(n int64) {
	s.Turns -= n
	s.TurnsUsed += n
}

// ApplyDamage removes armor points and flags the ship destroyed when none
// remain. It returns the armor actually removed.
func (s *Ship) ApplyDamage(damage int64) int64 {
	if damage <= 0 {
		return 0
	}
	removed := min(damage, s.ArmorPts)
	s.ArmorPts -= removed
	if s.ArmorPts <= 0 {
		s.Destroyed = true
	}
	return removed
}

// SameTeam reports whether both ships belong to the same non-zero team.
func (s *Ship) SameTeam(other *Ship) bool {
	return s.Team != 0 && s.Team == other.Team
}
