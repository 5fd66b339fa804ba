package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"libraryloans/internal/storage"
)

const (
	dialectPostgres = "postgres"

	tableBooks     = "books"
	tableCustomers = "customers"
	tableLoans     = "loans"
)

// PoolOptions configures the connection pool
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolOptions returns the pool settings used when none are configured
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:        8,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDB is the Postgres implementation of storage.Storage
type PostgresDB struct {
	*queries
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDB creates a new connection pool and verifies it with a ping
func NewPostgresDB(ctx context.Context, dsn string, opts PoolOptions, logger *zap.Logger) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDB{
		queries: newQueries(pool),
		pool:    pool,
		logger:  logger,
	}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	return nil
}

// InTx runs fn inside a read-committed transaction
func (db *PostgresDB) InTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// No-op once the transaction is committed; covers errors and panics otherwise
	defer func() {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, newQueries(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

var _ storage.Storage = (*PostgresDB)(nil)

// builder returns the dialect used for every statement
func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}
