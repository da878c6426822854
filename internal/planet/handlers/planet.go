package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/middleware"
	"traders-server/internal/planet"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type PlanetService interface {
	GetPlanet(ctx context.Context, id int) (*planet.Planet, error)
	SetProduction(ctx context.Context, shipID, planetID int, production planet.Production) (*planet.Planet, error)
}

type PlanetHandler struct {
	planets PlanetService
}

func NewPlanetHandler(planets PlanetService) *PlanetHandler {
	return &PlanetHandler{planets: planets}
}

func (h *PlanetHandler) GetPlanet(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_planet")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	id, err := request.PathID(r, "id")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	p, err := h.planets.GetPlanet(r.Context(), id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, p)
}

func (h *PlanetHandler) SetProduction(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "set_production")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	planetID, err := request.PathID(r, "id")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var production planet.Production
	if err := request.DecodeJSON(w, r, &production); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	p, err := h.planets.SetProduction(r.Context(), shipID, planetID, production)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, p)
}
