package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"traders-server/internal/shared/database"

	"github.com/lib/pq"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing bank repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

const accountColumns = `ship_id, balance, loan, loan_taken_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*Account, error) {
	var a Account
	var takenAt sql.NullTime
	if err := row.Scan(&a.ShipID, &a.Balance, &a.Loan, &takenAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if takenAt.Valid {
		a.LoanTakenAt = &takenAt.Time
	}
	return &a, nil
}

// OpenAccount creates an empty account for a ship. Opening twice is a no-op.
func (r *Repository) OpenAccount(ctx context.Context, shipID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "bank_repository", "operation", "open_account", "ship_id", shipID)

	if _, err := exec.ExecContext(ctx, `INSERT INTO bank_accounts (ship_id) VALUES ($1) ON CONFLICT (ship_id) DO NOTHING`, shipID); err != nil {
		logger.Error("Failed to open account", "error", err)
		return fmt.Errorf("failed to open account: %w", err)
	}

	logger.Debug("Account opened")
	return nil
}

// GetAccount returns nil when the ship has no account.
func (r *Repository) GetAccount(ctx context.Context, shipID int, tx *database.Tx) (*Account, error) {
	return r.getAccount(ctx, shipID, false, tx)
}

func (r *Repository) GetAccountForUpdate(ctx context.Context, shipID int, tx *database.Tx) (*Account, error) {
	return r.getAccount(ctx, shipID, true, tx)
}

func (r *Repository) getAccount(ctx context.Context, shipID int, forUpdate bool, tx *database.Tx) (*Account, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "bank_repository", "operation", "get_account", "ship_id", shipID, "for_update", forUpdate)

	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE ship_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAccount(exec.QueryRowContext(ctx, query, shipID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug("Account not found")
			return nil, nil
		}
		logger.Error("Failed to get account", "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetAccountsForUpdate locks several accounts in ship id order.
func (r *Repository) GetAccountsForUpdate(ctx context.Context, shipIDs []int, tx *database.Tx) (map[int]*Account, error) {
	logger := r.logger.With("component", "bank_repository", "operation", "get_accounts_for_update", "ship_ids", shipIDs)

	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE ship_id = ANY($1) ORDER BY ship_id FOR UPDATE`
	accounts, err := r.queryAccounts(ctx, r.getExecutor(tx), logger, query, pq.Array(shipIDs))
	if err != nil {
		return nil, err
	}

	byShip := make(map[int]*Account, len(accounts))
	for i := range accounts {
		byShip[accounts[i].ShipID] = &accounts[i]
	}
	return byShip, nil
}

// ListPositiveForUpdate locks every account holding a positive balance.
func (r *Repository) ListPositiveForUpdate(ctx context.Context, tx *database.Tx) ([]Account, error) {
	logger := r.logger.With("component", "bank_repository", "operation", "list_positive_for_update")

	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE balance > 0 ORDER BY ship_id FOR UPDATE`
	return r.queryAccounts(ctx, r.getExecutor(tx), logger, query)
}

func (r *Repository) queryAccounts(ctx context.Context, exec database.Executor, logger *slog.Logger, query string, args ...any) ([]Account, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query accounts", "error", err)
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			logger.Error("Failed to scan account row", "error", err)
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, a *Account, tx *database.Tx) error {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "bank_repository", "operation", "update_account", "ship_id", a.ShipID)

	query := `
		UPDATE bank_accounts
		SET balance = $2, loan = $3, loan_taken_at = $4, updated_at = NOW()
		WHERE ship_id = $1
	`
	if _, err := exec.ExecContext(ctx, query, a.ShipID, a.Balance, a.Loan, a.LoanTakenAt); err != nil {
		logger.Error("Failed to update account", "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	logger.Debug("Account updated", "balance", a.Balance, "loan", a.Loan)
	return nil
}

// UpdateBalancesBatch writes new balances for many accounts at once.
func (r *Repository) UpdateBalancesBatch(ctx context.Context, accounts []Account, tx *database.Tx) error {
	if len(accounts) == 0 {
		return nil
	}

	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "bank_repository", "operation", "update_balances_batch", "count", len(accounts))

	ids := make([]int64, len(accounts))
	balances := make([]int64, len(accounts))
	for i, a := range accounts {
		ids[i] = int64(a.ShipID)
		balances[i] = a.Balance
	}

	query := `
		UPDATE bank_accounts AS b SET balance = v.balance, updated_at = NOW()
		FROM unnest($1::bigint[], $2::bigint[]) AS v(ship_id, balance)
		WHERE b.ship_id = v.ship_id
	`
	if _, err := exec.ExecContext(ctx, query, pq.Array(ids), pq.Array(balances)); err != nil {
		logger.Error("Failed to batch update balances", "error", err)
		return fmt.Errorf("failed to batch update balances: %w", err)
	}

	logger.Debug("Balances batch updated")
	return nil
}

// NetPosition is balance minus loan, zero for a ship without an account.
func (r *Repository) NetPosition(ctx context.Context, shipID int, tx *database.Tx) (int64, error) {
	a, err := r.GetAccount(ctx, shipID, tx)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.Net(), nil
}

// CollectBounties deletes every bounty on a ship and returns their total.
func (r *Repository) CollectBounties(ctx context.Context, targetShipID int, tx *database.Tx) (int64, error) {
	exec := r.getExecutor(tx)
	logger := r.logger.With("component", "bank_repository", "operation", "collect_bounties", "target_ship_id", targetShipID)

	query := `
		WITH collected AS (
			DELETE FROM bounties WHERE target_ship_id = $1 RETURNING amount
		)
		SELECT COALESCE(SUM(amount), 0) FROM collected
	`

	var total int64
	if err := exec.QueryRowContext(ctx, query, targetShipID).Scan(&total); err != nil {
		logger.Error("Failed to collect bounties", "error", err)
		return 0, fmt.Errorf("failed to collect bounties: %w", err)
	}

	if total > 0 {
		logger.Info("Bounties collected", "total", total)
	}
	return total, nil
}
