package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/medallion/lib/jitter"
	"github.com/artie-labs/medallion/lib/retry"
)

const (
	maxAttempts     = 5
	sleepIntervalMs = 500
)

type Store interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Begin() (*sql.Tx, error)
	Close() error
}

type storeWrapper struct {
	*sql.DB
}

func (s *storeWrapper) Begin() (*sql.Tx, error) {
	return s.DB.Begin()
}

type Options struct {
	// MaxOpenConns is left to the driver default when zero.
	MaxOpenConns int
}

// Open opens the database and pings it, retrying connection errors with jitter. Statements run later are never retried.
func Open(ctx context.Context, logger *slog.Logger, driverName, dsn string, opts Options) (Store, error) {
	database, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to start a SQL client for driver %q: %w", driverName, err)
	}

	if opts.MaxOpenConns > 0 {
		database.SetMaxOpenConns(opts.MaxOpenConns)
		database.SetMaxIdleConns(opts.MaxOpenConns)
	}

	retryCfg := retry.NewRetryConfig(retry.NewRetryConfigArgs{
		JitterBaseMs:   sleepIntervalMs,
		JitterMaxMs:    jitter.DefaultMaxMs,
		MaxAttempts:    maxAttempts,
		IsRetryableErr: isRetryableError,
		Logger:         logger,
	})

	err = retryCfg.WithRetries(ctx, func(_ int, _ error) error {
		return database.PingContext(ctx)
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to validate the DB connection for driver %q: %w", driverName, err)
	}

	return WrapDB(database), nil
}

func WrapDB(database *sql.DB) Store {
	return &storeWrapper{DB: database}
}
