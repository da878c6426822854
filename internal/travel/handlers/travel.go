package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/middleware"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
	"traders-server/internal/travel"
)

type Mover interface {
	Move(ctx context.Context, shipID, destID int) (*travel.MoveReport, error)
}

type TravelHandler struct {
	travel Mover
}

func NewTravelHandler(travel Mover) *TravelHandler {
	return &TravelHandler{travel: travel}
}

type moveRequest struct {
	SectorID int `json:"sector_id"`
}

func (h *TravelHandler) Move(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "move")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req moveRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	report, err := h.travel.Move(r.Context(), shipID, req.SectorID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}
