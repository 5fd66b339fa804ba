package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"

	"libraryloans/migrations"
)

// OpenSQL opens a database/sql handle for tooling that needs one (goose)
func OpenSQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// SetupGoose points goose at the embedded migrations
func SetupGoose() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Migrate applies all pending migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := SetupGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrateDSN opens a short-lived connection to dsn and applies all pending migrations
func MigrateDSN(ctx context.Context, dsn string) error {
	db, err := OpenSQL(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return Migrate(ctx, db.DB)
}
