package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/market"
	"traders-server/internal/middleware"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type Trader interface {
	Prices(ctx context.Context, shipID int) ([]market.Quote, error)
	Buy(ctx context.Context, shipID int, commodity string, amount int64) (*market.Trade, error)
	Sell(ctx context.Context, shipID int, commodity string, amount int64) (*market.Trade, error)
}

type PortHandler struct {
	market Trader
}

func NewPortHandler(market Trader) *PortHandler {
	return &PortHandler{market: market}
}

type tradeRequest struct {
	Commodity string `json:"commodity"`
	Amount    int64  `json:"amount"`
}

func (h *PortHandler) Prices(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "port_prices")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	quotes, err := h.market.Prices(r.Context(), shipID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if quotes == nil {
		quotes = []market.Quote{}
	}

	response.Success(w, http.StatusOK, quotes)
}

func (h *PortHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, "port_buy", h.market.Buy)
}

func (h *PortHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, "port_sell", h.market.Sell)
}

func (h *PortHandler) trade(w http.ResponseWriter, r *http.Request, name string,
	do func(context.Context, int, string, int64) (*market.Trade, error)) {
	logger := slog.With("handler", name)
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req tradeRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	trade, err := do(r.Context(), shipID, req.Commodity, req.Amount)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, trade)
}
