package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/middleware"
	"traders-server/internal/ship"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type ShipService interface {
	GetShip(ctx context.Context, id int) (*ship.ShipView, error)
	Register(ctx context.Context, name, classKey string) (*ship.Ship, error)
	Upgrade(ctx context.Context, shipID int, component ship.Component) (*ship.ShipView, error)
	Downgrade(ctx context.Context, shipID int, component ship.Component) (*ship.ShipView, error)
	AllocateSkill(ctx context.Context, shipID int, skill string) (*ship.Ship, error)
	Respawn(ctx context.Context, shipID int) (*ship.Ship, error)
}

type TokenIssuer interface {
	Generate(shipID int) (string, error)
}

type ScoreRefresher interface {
	RefreshScore(ctx context.Context, shipID int) (int64, error)
}

type ShipHandler struct {
	ships  ShipService
	tokens TokenIssuer
	scores ScoreRefresher
}

func NewShipHandler(ships ShipService, tokens TokenIssuer, scores ScoreRefresher) *ShipHandler {
	return &ShipHandler{ships: ships, tokens: tokens, scores: scores}
}

type registerRequest struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

type RegisterResponse struct {
	Ship  *ship.Ship `json:"ship"`
	Token string     `json:"token"`
}

func (h *ShipHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "register_ship")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	var req registerRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	created, err := h.ships.Register(ctx, req.Name, req.Class)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	token, err := h.tokens.Generate(created.ID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, RegisterResponse{Ship: created, Token: token})
}

func (h *ShipHandler) Me(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "me")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view, err := h.ships.GetShip(r.Context(), shipID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, view)
}

type componentRequest struct {
	Component ship.Component `json:"component"`
}

func (h *ShipHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	h.changeComponent(w, r, "upgrade_component", h.ships.Upgrade)
}

func (h *ShipHandler) Downgrade(w http.ResponseWriter, r *http.Request) {
	h.changeComponent(w, r, "downgrade_component", h.ships.Downgrade)
}

func (h *ShipHandler) changeComponent(w http.ResponseWriter, r *http.Request, name string,
	change func(context.Context, int, ship.Component) (*ship.ShipView, error)) {
	logger := slog.With("handler", name)
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req componentRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view, err := change(r.Context(), shipID, req.Component)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, view)
}

type skillRequest struct {
	Skill string `json:"skill"`
}

func (h *ShipHandler) AllocateSkill(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "allocate_skill")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req skillRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	updated, err := h.ships.AllocateSkill(r.Context(), shipID, req.Skill)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, updated)
}

func (h *ShipHandler) Respawn(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "respawn")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	respawned, err := h.ships.Respawn(r.Context(), shipID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, respawned)
}

type ScoreResponse struct {
	ShipID int   `json:"ship_id"`
	Score  int64 `json:"score"`
}

func (h *ShipHandler) RefreshScore(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "refresh_score")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	score, err := h.scores.RefreshScore(r.Context(), shipID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, ScoreResponse{ShipID: shipID, Score: score})
}
