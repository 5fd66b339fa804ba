package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"libraryloans/internal/app"
	"libraryloans/internal/storage"
	"libraryloans/internal/storage/pg"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

// run owns the container so every exit path, including failures, terminates it
func run(ctx context.Context) error {
	log.Println("Starting Postgres testcontainer...")

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("library"),
		postgres.WithUsername("library"),
		postgres.WithPassword("devpassword"),
		postgres.BasicWaitStrategies(),
	)
	// Run may hand back a container together with an error
	defer func() {
		log.Println("Stopping Postgres container...")
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("failed to start Postgres container: %w", err)
	}

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get connection string: %w", err)
	}
	log.Printf("Postgres started at %s", dsn)

	// Schema first, then the demo catalog, so the dev server has something to lend
	if err := pg.MigrateDSN(ctx, dsn); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	if err := seed(ctx, dsn); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	// Set environment variables for the application
	os.Setenv("DATABASE_URL", dsn)
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("MIGRATIONS_ON_START", "false")
	os.Setenv("GIN_MODE", "debug")

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}
	// Set PORT for HTTP server if not already set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	log.Println("Starting application with Postgres backend...")

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Run blocks until SIGINT/SIGTERM
	if err := application.Run(); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	return nil
}

func seed(ctx context.Context, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := pg.NewPostgresDB(ctx, dsn, pg.DefaultPoolOptions(), zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.Seed(ctx, db)
}
