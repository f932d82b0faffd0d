package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"go.uber.org/zap"
)

type contextKey string

const txKey contextKey = "tx"

// RetryConfig bounds how often a transaction is re-run on lock contention.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryConfig is five attempts starting at 100ms and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        5,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
	}
}

// DB wraps sql.DB and implements TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
	retry  RetryConfig
}

// Option configures DB
type Option func(*DB)

// WithRetry overrides the lock-contention retry policy
func WithRetry(cfg RetryConfig) Option {
	return func(db *DB) {
		if cfg.MaxTries > 0 {
			db.retry.MaxTries = cfg.MaxTries
		}
		if cfg.InitialInterval > 0 {
			db.retry.InitialInterval = cfg.InitialInterval
		}
		if cfg.Multiplier >= 1 {
			db.retry.Multiplier = cfg.Multiplier
		}
	}
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:     sqlDB,
		logger: logger,
		retry:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// WithTransaction runs fn in a transaction carried on the context. Nested
// calls join the outer transaction. When the store reports SQLITE_BUSY or
// SQLITE_LOCKED the whole transaction is rolled back and fn is re-run with
// exponential backoff; once retries are exhausted the error is reported as
// apperr.ErrTransient.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := ExtractTx(ctx); tx != nil {
		return fn(ctx)
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := db.runTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsBusy(err) {
			db.logger.Warn("Store busy, retrying transaction",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = db.retry.InitialInterval
	b.Multiplier = db.retry.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(db.retry.MaxTries))
	if err != nil && IsBusy(err) {
		db.logger.Error("Transaction failed after retries",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return apperr.Transient(err)
	}
	return err
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExtractTx retrieves the transaction from ctx if present
func ExtractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Conn returns the transaction carried on ctx, or fallback.
func Conn(ctx context.Context, fallback *sql.DB) Executor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return fallback
}

var _ port.TransactionManager = (*DB)(nil)
