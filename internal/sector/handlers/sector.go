package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/sector"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type SectorReader interface {
	GetSector(ctx context.Context, id int) (*sector.SectorView, error)
}

type SectorHandler struct {
	sectors SectorReader
}

func NewSectorHandler(sectors SectorReader) *SectorHandler {
	return &SectorHandler{sectors: sectors}
}

func (h *SectorHandler) GetSector(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_sector")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	id, err := request.PathID(r, "id")
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view, err := h.sectors.GetSector(r.Context(), id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, view)
}
