package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "traders-server/internal/shared/errors"

	"github.com/lib/pq"
)

// Postgres error codes that mean the transaction lost a race and can be
// replayed from the start.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// TxRunner runs fn inside a single transaction. Implementations commit when
// fn returns nil and roll back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *Tx) error) error
}

// WithTx runs fn in a transaction, replaying it when Postgres reports a
// serialization failure, deadlock or lock timeout. Once the attempts are
// exhausted the last error is returned as a transient error.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	logger := slog.With("component", "database", "operation", "with_tx")

	attempts := db.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		logger.Warn("Transaction conflict", "attempt", attempt, "max_attempts", attempts, "error", err)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}

	return apperrors.Transient("concurrent update conflict, retry the request", err)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.BeginTxContext(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("Failed to rollback transaction", "component", "database", "error", rbErr)
		}
	}()

	if db.lockTimeout > 0 {
		// SET does not accept bind parameters.
		query := fmt.Sprintf("SET LOCAL lock_timeout = %d", db.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a Postgres conflict that a fresh
// transaction may not hit again.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	base := time.Duration(attempt) * 20 * time.Millisecond
	return base + time.Duration(rand.Int64N(int64(20*time.Millisecond)))
}
