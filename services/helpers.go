package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dosada05/duel-system/repositories"
)

// runInTx выполняет fn в одной транзакции: rollback при ошибке или панике,
// commit при успехе. Без пула соединений fn выполняется напрямую:
// репозитории с nil SQLExecutor работают по собственному соединению.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const (
	conflictRetries = 3
	conflictBackoff = 50 * time.Millisecond
)

// runInTxRetry повторяет транзакцию при serialization/deadlock failure.
// Повторяется только конфликт — остальные ошибки сразу наверх.
func runInTxRetry(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(conflictBackoff * time.Duration(attempt)):
			}
		}
		err = runInTx(ctx, db, fn)
		if err == nil || !repositories.IsSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}
