// Package economy advances the galaxy over time: port and planet output,
// bank interest, turn grants, fighter decay, rankings and housekeeping.
// Every formula takes the number of owed intervals so a late run catches up
// in one step.
package economy

import (
	"math"

	"traders-server/internal/market"
	"traders-server/internal/planet"
	"traders-server/internal/sector"
	"traders-server/internal/shared/config"
)

// RegenerateToward grows stock toward capacity by rate of the empty space
// per interval, applied n times. The result never exceeds capacity.
func RegenerateToward(stock, capacity int64, rate float64, n int64) int64 {
	if stock >= capacity || n <= 0 {
		return stock
	}
	gained := int64(float64(capacity-stock) * (1 - math.Pow(1-rate, float64(n))))
	return min(stock+gained, capacity)
}

// Consume shrinks stock by rate per interval, applied n times. The result
// never drops below zero.
func Consume(stock int64, rate float64, n int64) int64 {
	if stock <= 0 {
		return 0
	}
	if n <= 0 {
		return stock
	}
	used := int64(float64(stock) * (1 - math.Pow(1-rate, float64(n))))
	return max(stock-used, 0)
}

// AccrueInterest compounds floor(balance × rate) n times.
func AccrueInterest(balance int64, rate float64, n int64) int64 {
	for range n {
		interest := int64(math.Floor(float64(balance) * rate))
		if interest <= 0 {
			break
		}
		balance += interest
	}
	return balance
}

// DecayFighters is floor(quantity × (1 − rate)^n).
func DecayFighters(quantity int64, rate float64, n int64) int64 {
	if quantity <= 0 {
		return 0
	}
	return int64(math.Floor(float64(quantity) * math.Pow(1-rate, float64(n))))
}

// ProducePort advances one port by n intervals: its own commodity
// regenerates, the commodities it buys are consumed and its colonists
// regrow. It reports whether anything changed. Special ports are untouched.
func ProducePort(s *sector.Sector, cfg *config.GameConfig, n int64) bool {
	if _, ok := s.PortType.Commodity(); !ok {
		return false
	}

	changed := false
	for _, commodity := range market.Commodities {
		c := cfg.Commodities[commodity]
		stock, _ := s.Stock(commodity)

		next := stock
		switch {
		case market.PortSells(s.PortType, commodity):
			next = RegenerateToward(stock, c.Capacity, c.RegenRate, n)
		case market.PortBuys(s.PortType, commodity):
			next = Consume(stock, c.ConsumptionRate, n)
		}
		if next != stock {
			s.SetStock(commodity, next)
			changed = true
		}
	}

	colonists := RegenerateToward(s.PortColonists, cfg.PortColonists.Capacity, cfg.PortColonists.RegenRate, n)
	if colonists != s.PortColonists {
		s.PortColonists = colonists
		changed = true
	}
	return changed
}

// ProducePlanet adds n intervals of output to an owned planet according to
// its production shares. Each unit of output needs ColonistsPerUnit
// colonists; fighters and torpedoes convert at reduced ratios.
func ProducePlanet(p *planet.Planet, cfg config.PlanetConfig, n int64) bool {
	if !p.Owner.Valid || p.Colonists < cfg.MinColonists || n <= 0 {
		return false
	}

	units := p.Colonists / cfg.ColonistsPerUnit
	share := func(pct int) int64 { return units * int64(pct) / 100 }

	before := *p
	p.Ore = addCapped(p.Ore, share(p.Production.Ore)*n, cfg.MaxOre)
	p.Organics = addCapped(p.Organics, share(p.Production.Organics)*n, cfg.MaxOrganics)
	p.Goods = addCapped(p.Goods, share(p.Production.Goods)*n, cfg.MaxGoods)
	p.Energy = addCapped(p.Energy, share(p.Production.Energy)*n, cfg.MaxEnergy)
	p.Fighters = addCapped(p.Fighters, share(p.Production.Fighters)/cfg.FighterDivisor*n, cfg.MaxFighters)
	p.Torps = addCapped(p.Torps, share(p.Production.Torps)/cfg.TorpDivisor*n, cfg.MaxTorps)

	return *p != before
}

func addCapped(v, delta, limit int64) int64 {
	if delta <= 0 || v >= limit {
		return v
	}
	return min(v+delta, limit)
}
