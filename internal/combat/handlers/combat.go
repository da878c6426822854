package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/combat"
	"traders-server/internal/defense"
	"traders-server/internal/middleware"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type Combatant interface {
	AttackShip(ctx context.Context, attackerID, targetID int) (*combat.ShipAttackReport, error)
	AttackPlanet(ctx context.Context, shipID, planetID int) (*combat.PlanetAttackReport, error)
	DeployDefense(ctx context.Context, shipID int, t defense.Type, quantity int64) (*combat.DeployReport, error)
	RetrieveDefense(ctx context.Context, shipID, stackID int) (*defense.Stack, error)
}

type CombatHandler struct {
	combat Combatant
}

func NewCombatHandler(combat Combatant) *CombatHandler {
	return &CombatHandler{combat: combat}
}

func (h *CombatHandler) AttackShip(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "attack_ship")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	targetID, err := request.PathID(r, "id")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	report, err := h.combat.AttackShip(r.Context(), shipID, targetID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}

func (h *CombatHandler) AttackPlanet(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "attack_planet")
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

	report, err := h.combat.AttackPlanet(r.Context(), shipID, planetID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}

type deployRequest struct {
	Type     defense.Type `json:"type"`
	Quantity int64        `json:"quantity"`
}

func (h *CombatHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "deploy_defense")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req deployRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	report, err := h.combat.DeployDefense(r.Context(), shipID, req.Type, req.Quantity)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, report)
}

func (h *CombatHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "retrieve_defense")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	stackID, err := request.PathID(r, "id")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	stack, err := h.combat.RetrieveDefense(r.Context(), shipID, stackID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, stack)
}
