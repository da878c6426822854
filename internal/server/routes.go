package server

import (
	"log/slog"
	"net/http"

	bankHandlers "traders-server/internal/bank/handlers"
	combatHandlers "traders-server/internal/combat/handlers"
	marketHandlers "traders-server/internal/market/handlers"
	"traders-server/internal/middleware"
	planetHandlers "traders-server/internal/planet/handlers"
	rankingHandlers "traders-server/internal/ranking/handlers"
	sectorHandlers "traders-server/internal/sector/handlers"
	serverHandlers "traders-server/internal/server/handlers"
	sharedredis "traders-server/internal/shared/redis"
	shipHandlers "traders-server/internal/ship/handlers"
	travelHandlers "traders-server/internal/travel/handlers"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	DB       serverHandlers.Pinger
	Redis    *sharedredis.Client
	Ships    shipHandlers.ShipService
	Tokens   shipHandlers.TokenIssuer
	Scores   shipHandlers.ScoreRefresher
	Travel   travelHandlers.Mover
	Sectors  sectorHandlers.SectorReader
	Market   marketHandlers.Trader
	Combat   combatHandlers.Combatant
	Bank     bankHandlers.Banker
	Planets  planetHandlers.PlanetService
	Rankings rankingHandlers.RankingReader
}

type Routes struct {
	deps Deps
	auth *middleware.JWTMiddleware
	tick *middleware.TickMiddleware
}

func NewRoutes(deps Deps, auth *middleware.JWTMiddleware, tick *middleware.TickMiddleware) *Routes {
	return &Routes{deps: deps, auth: auth, tick: tick}
}

// protect authenticates the acting ship, then lets the economy catch up
// before the handler reads any state.
func (r *Routes) protect(h http.HandlerFunc) http.Handler {
	if r.tick != nil {
		return r.auth.Middleware(r.tick.Middleware(h))
	}
	return r.auth.Middleware(h)
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()
	d := r.deps

	healthHandler := serverHandlers.NewHealthHandler(d.DB, d.Redis)
	shipHandler := shipHandlers.NewShipHandler(d.Ships, d.Tokens, d.Scores)
	travelHandler := travelHandlers.NewTravelHandler(d.Travel)
	sectorHandler := sectorHandlers.NewSectorHandler(d.Sectors)
	portHandler := marketHandlers.NewPortHandler(d.Market)
	combatHandler := combatHandlers.NewCombatHandler(d.Combat)
	bankHandler := bankHandlers.NewBankHandler(d.Bank)
	planetHandler := planetHandlers.NewPlanetHandler(d.Planets)
	rankingHandler := rankingHandlers.NewRankingHandler(d.Rankings)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("/api/ships", shipHandler.Register)
	mux.HandleFunc("/api/sectors/{id}", sectorHandler.GetSector)
	mux.HandleFunc("/api/planets/{id}", planetHandler.GetPlanet)
	mux.HandleFunc("/api/rankings", rankingHandler.Top)
	mux.HandleFunc("/api/rankings/snapshot", rankingHandler.LatestSnapshot)

	// Ship endpoints (authenticated)
	mux.Handle("/api/ship", r.protect(shipHandler.Me))
	mux.Handle("/api/ship/upgrade", r.protect(shipHandler.Upgrade))
	mux.Handle("/api/ship/downgrade", r.protect(shipHandler.Downgrade))
	mux.Handle("/api/ship/skills", r.protect(shipHandler.AllocateSkill))
	mux.Handle("/api/ship/respawn", r.protect(shipHandler.Respawn))
	mux.Handle("/api/ship/score", r.protect(shipHandler.RefreshScore))
	mux.Handle("/api/ship/move", r.protect(travelHandler.Move))

	// Trade and banking
	mux.Handle("/api/port/prices", r.protect(portHandler.Prices))
	mux.Handle("/api/port/buy", r.protect(portHandler.Buy))
	mux.Handle("/api/port/sell", r.protect(portHandler.Sell))
	mux.Handle("/api/bank", r.protect(bankHandler.Account))
	mux.Handle("/api/bank/deposit", r.protect(bankHandler.Deposit))
	mux.Handle("/api/bank/withdraw", r.protect(bankHandler.Withdraw))
	mux.Handle("/api/bank/transfer", r.protect(bankHandler.Transfer))
	mux.Handle("/api/bank/loan", r.protect(bankHandler.TakeLoan))
	mux.Handle("/api/bank/repay", r.protect(bankHandler.RepayLoan))

	// Combat and planets
	mux.Handle("/api/combat/ships/{id}", r.protect(combatHandler.AttackShip))
	mux.Handle("/api/combat/planets/{id}", r.protect(combatHandler.AttackPlanet))
	mux.Handle("/api/defenses", r.protect(combatHandler.Deploy))
	mux.Handle("/api/defenses/{id}/retrieve", r.protect(combatHandler.Retrieve))
	mux.Handle("/api/planets/{id}/production", r.protect(planetHandler.SetProduction))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/ships", "/api/sectors/{id}", "/api/planets/{id}", "/api/rankings", "/api/rankings/snapshot"},
		"ship_endpoints", []string{"/api/ship", "/api/ship/upgrade", "/api/ship/downgrade", "/api/ship/skills", "/api/ship/respawn", "/api/ship/score", "/api/ship/move"},
		"trade_endpoints", []string{"/api/port/prices", "/api/port/buy", "/api/port/sell", "/api/bank", "/api/bank/deposit", "/api/bank/withdraw", "/api/bank/transfer", "/api/bank/loan", "/api/bank/repay"},
		"combat_endpoints", []string{"/api/combat/ships/{id}", "/api/combat/planets/{id}", "/api/defenses", "/api/defenses/{id}/retrieve", "/api/planets/{id}/production"},
	)

	return mux
}
