// Package market prices commodities at ports and settles trades.
package market

import (
	"traders-server/internal/sector"
	"traders-server/internal/shared/config"
)

// Commodities lists tradable commodities in display order.
var Commodities = []string{
	config.CommodityOre,
	config.CommodityOrganics,
	config.CommodityGoods,
	config.CommodityEnergy,
}

// Price is the port price of a commodity at the given stock. A full port
// charges the base price and an empty one base + elasticity.
func Price(c config.CommodityConfig, stock int64) int64 {
	if c.Capacity <= 0 {
		return max(1, c.BasePrice)
	}
	stock = min(max(stock, 0), c.Capacity)
	return max(1, c.BasePrice+c.Elasticity*(c.Capacity-stock)/c.Capacity)
}

// PortSells reports whether a port offers the commodity to players.
func PortSells(port sector.PortType, commodity string) bool {
	own, ok := port.Commodity()
	return ok && own == commodity
}

// PortBuys reports whether a port accepts the commodity from players. Energy
// ports take every other commodity; the rest take the two that are neither
// their own nor energy.
func PortBuys(port sector.PortType, commodity string) bool {
	own, ok := port.Commodity()
	if !ok || own == commodity {
		return false
	}
	if own == config.CommodityEnergy {
		return true
	}
	return commodity != config.CommodityEnergy
}

// PlayerBuyPrice discounts a port price by the trading bonus percentage.
func PlayerBuyPrice(price int64, bonus float64) int64 {
	return max(1, int64(float64(price)*(1-bonus/100)))
}

// PlayerSellPrice raises a port price by the trading bonus percentage.
func PlayerSellPrice(price int64, bonus float64) int64 {
	return max(1, int64(float64(price)*(1+bonus/100)))
}

type Quote struct {
	Commodity string `json:"commodity"`
	Stock     int64  `json:"stock"`
	Buy       int64  `json:"buy"`
	Sell      int64  `json:"sell"`
	PortSells bool   `json:"port_sells"`
	PortBuys  bool   `json:"port_buys"`
}

// Quotes prices every commodity at the port in s for a trader with the given
// bonus.
func Quotes(s *sector.Sector, cfg *config.GameConfig, bonus float64) []Quote {
	quotes := make([]Quote, 0, len(Commodities))
	for _, commodity := range Commodities {
		stock, _ := s.Stock(commodity)
		price := Price(cfg.Commodities[commodity], stock)
		quotes = append(quotes, Quote{
			Commodity: commodity,
			Stock:     stock,
			Buy:       PlayerBuyPrice(price, bonus),
			Sell:      PlayerSellPrice(price, bonus),
			PortSells: PortSells(s.PortType, commodity),
			PortBuys:  PortBuys(s.PortType, commodity),
		})
	}
	return quotes
}
