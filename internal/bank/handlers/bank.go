package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"traders-server/internal/bank"
	"traders-server/internal/middleware"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type Banker interface {
	Account(ctx context.Context, shipID int) (*bank.Account, error)
	Deposit(ctx context.Context, shipID int, amount int64) (*bank.Receipt, error)
	Withdraw(ctx context.Context, shipID int, amount int64) (*bank.Receipt, error)
	Transfer(ctx context.Context, fromID, toID int, amount int64) (*bank.Receipt, error)
	TakeLoan(ctx context.Context, shipID int, amount int64) (*bank.Receipt, error)
	RepayLoan(ctx context.Context, shipID int, amount int64) (*bank.Receipt, error)
}

type BankHandler struct {
	bank Banker
}

func NewBankHandler(bank Banker) *BankHandler {
	return &BankHandler{bank: bank}
}

func (h *BankHandler) Account(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "bank_account")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	account, err := h.bank.Account(r.Context(), shipID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, account)
}

func (h *BankHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "bank_deposit", h.bank.Deposit)
}

func (h *BankHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "bank_withdraw", h.bank.Withdraw)
}

func (h *BankHandler) TakeLoan(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "bank_loan", h.bank.TakeLoan)
}

func (h *BankHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "bank_repay", h.bank.RepayLoan)
}

func (h *BankHandler) move(w http.ResponseWriter, r *http.Request, name string,
	do func(context.Context, int, int64) (*bank.Receipt, error)) {
	logger := slog.With("handler", name)
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req amountRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	receipt, err := do(r.Context(), shipID, req.Amount)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, receipt)
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	To     int   `json:"to"`
	Amount int64 `json:"amount"`
}

func (h *BankHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "bank_transfer")
	if !request.Allow(w, r, logger, http.MethodPost) {
		return
	}

	shipID, err := middleware.ShipID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	var req transferRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	receipt, err := h.bank.Transfer(r.Context(), shipID, req.To, req.Amount)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, receipt)
}
