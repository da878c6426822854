package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traders-server/internal/auth"
	"traders-server/internal/bank"
	"traders-server/internal/combat"
	"traders-server/internal/defense"
	"traders-server/internal/economy"
	"traders-server/internal/eventlog"
	"traders-server/internal/market"
	"traders-server/internal/middleware"
	"traders-server/internal/planet"
	"traders-server/internal/ranking"
	"traders-server/internal/sector"
	"traders-server/internal/server"
	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/logger"
	sharedredis "traders-server/internal/shared/redis"
	"traders-server/internal/travel"
	"traders-server/internal/universe"
	"traders-server/internal/valuation"
)

// Economy passes triggered by requests are attempted at most this often.
const tickThrottle = time.Second

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	gameCfg := cfg.Game
	log := slog.With("component", "main")

	log.Info("Starting Traders server",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := sharedredis.Connect()
	if err != nil {
		log.Warn("Redis unavailable, leaderboard served from Postgres", "error", err)
		redisClient = nil
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", "error", err)
		}
	}()

	serviceLogger := slog.Default()

	shipRepo := ship.NewRepository(db, serviceLogger)
	sectorRepo := sector.NewRepository(db, serviceLogger)
	planetRepo := planet.NewRepository(db, serviceLogger)
	defenseRepo := defense.NewRepository(db, serviceLogger)
	bankRepo := bank.NewRepository(db, serviceLogger)
	eventRepo := eventlog.NewRepository(db, serviceLogger)
	rankingRepo := ranking.NewRepository(db, serviceLogger)
	schedulerRepo := economy.NewSchedulerRepository(db, serviceLogger)

	var rankingCache ranking.Cache
	if redisClient.Available() {
		rankingCache = ranking.NewRedisCache(redisClient, serviceLogger)
	}

	roller := combat.SharedRoller{}

	shipService := ship.NewService(db, shipRepo, bankRepo, gameCfg, serviceLogger)
	sectorService := sector.NewService(sectorRepo, gameCfg, serviceLogger)
	planetService := planet.NewService(db, planetRepo, serviceLogger)
	marketService := market.NewService(db, shipRepo, sectorRepo, gameCfg, serviceLogger)
	bankService := bank.NewService(db, bankRepo, shipRepo, gameCfg, serviceLogger)
	valuationService := valuation.NewService(db, shipRepo, planetRepo, bankRepo, gameCfg, serviceLogger)
	rankingService := ranking.NewService(rankingRepo, rankingCache, gameCfg, serviceLogger)
	combatService := combat.NewService(db, combat.Stores{
		Ships:    shipRepo,
		Sectors:  sectorRepo,
		Planets:  planetRepo,
		Defenses: defenseRepo,
		Bounties: bankRepo,
		Events:   eventRepo,
	}, gameCfg, roller, serviceLogger)
	travelService := travel.NewService(db, shipRepo, sectorRepo, defenseRepo, eventRepo,
		combat.NewResolver(gameCfg, roller), gameCfg, serviceLogger)

	universeService := universe.NewService(db, sectorService, planetService, gameCfg, serviceLogger)
	seed := gameCfg.Universe.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if _, err := universeService.Bootstrap(ctx, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))); err != nil {
		return err
	}

	ticker := economy.NewTicker(db, schedulerRepo, gameCfg, serviceLogger)
	tasks := &economy.Tasks{
		Ships:     shipRepo,
		Sectors:   sectorRepo,
		Planets:   planetRepo,
		Accounts:  bankRepo,
		Defenses:  defenseRepo,
		Events:    eventRepo,
		Rankings:  rankingService,
		TickRuns:  schedulerRepo,
		Snapshots: rankingRepo,
		Rng:       roller,
		Config:    gameCfg,
		Logger:    serviceLogger,
	}
	tasks.RegisterAll(ticker)

	if err := schedulerRepo.EnsureTasks(ctx, gameCfg.Scheduler.Periods, time.Now()); err != nil {
		return fmt.Errorf("failed to register scheduler tasks: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	routes := server.NewRoutes(server.Deps{
		DB:       db,
		Redis:    redisClient,
		Ships:    shipService,
		Tokens:   issuer,
		Scores:   valuationService,
		Travel:   travelService,
		Sectors:  sectorService,
		Market:   marketService,
		Combat:   combatService,
		Bank:     bankService,
		Planets:  planetService,
		Rankings: rankingService,
	},
		middleware.NewJWTMiddleware(issuer, shipRepo),
		middleware.NewTickMiddleware(ticker, tickThrottle),
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	go rateLimiter.Run(ctx)

	cors := middleware.NewCORS(cfg.Frontend)
	handler := cors.Middleware(rateLimiter.Middleware(routes.Setup()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Traders server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
