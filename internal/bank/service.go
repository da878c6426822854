package bank

import (
	"context"
	"log/slog"
	"math"
	"time"

	"traders-server/internal/ship"
	"traders-server/internal/shared/config"
	"traders-server/internal/shared/database"
	"traders-server/internal/shared/errors"
)

type Store interface {
	GetAccount(ctx context.Context, shipID int, tx *database.Tx) (*Account, error)
	GetAccountForUpdate(ctx context.Context, shipID int, tx *database.Tx) (*Account, error)
	GetAccountsForUpdate(ctx context.Context, shipIDs []int, tx *database.Tx) (map[int]*Account, error)
	UpdateAccount(ctx context.Context, a *Account, tx *database.Tx) error
}

type ShipStore interface {
	GetShipForUpdate(ctx context.Context, id int, tx *database.Tx) (*ship.Ship, error)
	UpdateShip(ctx context.Context, s *ship.Ship, tx *database.Tx) error
}

type Service struct {
	db     database.TxRunner
	repo   Store
	ships  ShipStore
	cfg    *config.GameConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db database.TxRunner, repo Store, ships ShipStore, cfg *config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing bank service")

	return &Service{
		db:     db,
		repo:   repo,
		ships:  ships,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Receipt reports a settled bank operation.
type Receipt struct {
	Account *Account `json:"account"`
	Amount  int64    `json:"amount"`
	Fee     int64    `json:"fee"`
	Credits int64    `json:"credits"`
}

func (s *Service) checkAmount(amount int64) error {
	if amount <= 0 {
		return errors.Validation("amount must be positive")
	}
	if amount > s.cfg.Bank.MaxAmount {
		return errors.Validationf("amount must not exceed %d credits", s.cfg.Bank.MaxAmount)
	}
	return nil
}

// TransferFee is the charge on top of a transfer of amount.
func TransferFee(cfg *config.GameConfig, amount int64) int64 {
	return int64(math.Round(float64(amount) * cfg.Bank.TransferFee))
}

// LoanFee is withheld from the credited amount of a new loan.
func LoanFee(cfg *config.GameConfig, amount int64) int64 {
	return int64(math.Round(float64(amount) * cfg.Bank.LoanFee))
}

// MaxLoan is the largest outstanding loan a ship with score may carry.
func MaxLoan(cfg *config.GameConfig, score int64) int64 {
	return int64(float64(max(cfg.Bank.MinNetWorth, score)) * cfg.Bank.LoanLimit)
}

func (s *Service) Account(ctx context.Context, shipID int) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, shipID, nil)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.NotFoundf("bank account for ship %d not found", shipID)
	}
	return a, nil
}

// Deposit moves credits carried by the ship into its account.
func (s *Service) Deposit(ctx context.Context, shipID int, amount int64) (*Receipt, error) {
	logger := s.logger.With("component", "bank_service", "operation", "deposit", "ship_id", shipID, "amount", amount)

	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Receipt
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, account, err := s.lockShipAndAccount(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if sh.Credits < amount {
			return errors.Preconditionf("you carry %d credits", sh.Credits)
		}

		sh.Credits -= amount
		account.Balance += amount
		if err := s.ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
		if err := s.repo.UpdateAccount(ctx, account, tx); err != nil {
			return err
		}

		logger.Info("Credits deposited", "balance", account.Balance)
		result = &Receipt{Account: account, Amount: amount, Credits: sh.Credits}
		return nil
	})
	return result, err
}

// Withdraw moves credits from the account onto the ship.
func (s *Service) Withdraw(ctx context.Context, shipID int, amount int64) (*Receipt, error) {
	logger := s.logger.With("component", "bank_service", "operation", "withdraw", "ship_id", shipID, "amount", amount)

	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Receipt
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, account, err := s.lockShipAndAccount(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return errors.Preconditionf("balance is %d credits", account.Balance)
		}

		account.Balance -= amount
		sh.Credits += amount
		if err := s.ships.UpdateShip(ctx, sh, tx); err != nil {
			return err
		}
		if err := s.repo.UpdateAccount(ctx, account, tx); err != nil {
			return err
		}

		logger.Info("Credits withdrawn", "balance", account.Balance)
		result = &Receipt{Account: account, Amount: amount, Credits: sh.Credits}
		return nil
	})
	return result, err
}

// Transfer sends amount from one account to another. The sender also pays
// the transfer fee; the recipient receives exactly amount.
func (s *Service) Transfer(ctx context.Context, fromID, toID int, amount int64) (*Receipt, error) {
	logger := s.logger.With("component", "bank_service", "operation", "transfer", "from_ship_id", fromID, "to_ship_id", toID, "amount", amount)

	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, errors.Validation("cannot transfer to your own account")
	}

	fee := TransferFee(s.cfg, amount)

	var result *Receipt
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		accounts, err := s.repo.GetAccountsForUpdate(ctx, []int{fromID, toID}, tx)
		if err != nil {
			return err
		}
		from, ok := accounts[fromID]
		if !ok {
			return errors.NotFoundf("bank account for ship %d not found", fromID)
		}
		to, ok := accounts[toID]
		if !ok {
			return errors.NotFoundf("bank account for ship %d not found", toID)
		}

		if from.Balance < amount || from.Balance-amount < fee {
			return errors.Preconditionf("transfer needs %d credits including a %d fee, balance is %d", amount+fee, fee, from.Balance)
		}

		from.Balance -= amount + fee
		to.Balance += amount
		if err := s.repo.UpdateAccount(ctx, from, tx); err != nil {
			return err
		}
		if err := s.repo.UpdateAccount(ctx, to, tx); err != nil {
			return err
		}

		logger.Info("Transfer completed", "fee", fee)
		result = &Receipt{Account: from, Amount: amount, Fee: fee}
		return nil
	})
	return result, err
}

// TakeLoan borrows amount against the ship's score. The fee is withheld from
// the credited amount but the whole amount is owed.
func (s *Service) TakeLoan(ctx context.Context, shipID int, amount int64) (*Receipt, error) {
	logger := s.logger.With("component", "bank_service", "operation", "take_loan", "ship_id", shipID, "amount", amount)

	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Receipt
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sh, account, err := s.lockShipAndAccount(ctx, shipID, tx)
		if err != nil {
			return err
		}

		limit := MaxLoan(s.cfg, sh.Score)
		if account.Loan > limit || amount > limit-account.Loan {
			return errors.Preconditionf("loan limit is %d credits, you owe %d", limit, account.Loan)
		}

		fee := LoanFee(s.cfg, amount)
		account.Loan += amount
		account.Balance += amount - fee
		if account.LoanTakenAt == nil {
			now := s.now()
			account.LoanTakenAt = &now
		}
		if err := s.repo.UpdateAccount(ctx, account, tx); err != nil {
			return err
		}

		logger.Info("Loan granted", "fee", fee, "loan", account.Loan)
		result = &Receipt{Account: account, Amount: amount, Fee: fee, Credits: sh.Credits}
		return nil
	})
	return result, err
}

// RepayLoan pays the loan back from the account balance. Amounts above the
// outstanding loan are capped.
func (s *Service) RepayLoan(ctx context.Context, shipID int, amount int64) (*Receipt, error) {
	logger := s.logger.With("component", "bank_service", "operation", "repay_loan", "ship_id", shipID, "amount", amount)

	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Receipt
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		account, err := s.repo.GetAccountForUpdate(ctx, shipID, tx)
		if err != nil {
			return err
		}
		if account == nil {
			return errors.NotFoundf("bank account for ship %d not found", shipID)
		}
		if account.Loan == 0 {
			return errors.Preconditionf("there is no outstanding loan")
		}

		paid := min(amount, account.Loan)
		if account.Balance < paid {
			return errors.Preconditionf("repaying %d credits needs that much on balance, balance is %d", paid, account.Balance)
		}

		account.Balance -= paid
		account.Loan -= paid
		if account.Loan == 0 {
			account.LoanTakenAt = nil
		}
		if err := s.repo.UpdateAccount(ctx, account, tx); err != nil {
			return err
		}

		logger.Info("Loan repaid", "paid", paid, "loan", account.Loan)
		result = &Receipt{Account: account, Amount: paid}
		return nil
	})
	return result, err
}

func (s *Service) lockShipAndAccount(ctx context.Context, shipID int, tx *database.Tx) (*ship.Ship, *Account, error) {
	sh, err := s.ships.GetShipForUpdate(ctx, shipID, tx)
	if err != nil {
		return nil, nil, err
	}
	if sh == nil {
		return nil, nil, errors.NotFoundf("ship %d not found", shipID)
	}
	if sh.Destroyed {
		return nil, nil, errors.Preconditionf("ship is destroyed")
	}

	account, err := s.repo.GetAccountForUpdate(ctx, shipID, tx)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, errors.NotFoundf("bank account for ship %d not found", shipID)
	}
	return sh, account, nil
}
