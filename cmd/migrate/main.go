package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"libraryloans/internal/config"
	"libraryloans/internal/storage"
	"libraryloans/internal/storage/pg"
)

// rootOptions holds flags shared by every subcommand
type rootOptions struct {
	Timeout time.Duration
	Dir     string
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the library loans database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", time.Minute, "timeout for the whole command")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "migrations", "migrations directory used by create")

	cmd.AddCommand(
		newSchemaCommand(opts, "up", "Apply all pending migrations", func(ctx context.Context, db *sqlx.DB) error {
			if err := goose.UpContext(ctx, db.DB, "."); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Println("Migrations completed successfully")
			return nil
		}),
		newSchemaCommand(opts, "down", "Roll back the latest migration", func(ctx context.Context, db *sqlx.DB) error {
			if err := goose.DownContext(ctx, db.DB, "."); err != nil {
				return fmt.Errorf("failed to rollback migration: %w", err)
			}
			log.Println("Rollback completed successfully")
			return nil
		}),
		newSchemaCommand(opts, "status", "Print the status of every migration", func(ctx context.Context, db *sqlx.DB) error {
			if err := goose.StatusContext(ctx, db.DB, "."); err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			return nil
		}),
		newSchemaCommand(opts, "version", "Print the current schema version", func(ctx context.Context, db *sqlx.DB) error {
			version, err := goose.GetDBVersionContext(ctx, db.DB)
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			log.Printf("Current migration version: %d", version)
			return nil
		}),
		newCreateCommand(opts),
		newSeedCommand(opts),
	)

	return cmd
}

// newSchemaCommand wraps a goose operation that runs against the embedded migrations
func newSchemaCommand(opts *rootOptions, use, short string, run func(ctx context.Context, db *sqlx.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := pg.SetupGoose(); err != nil {
				return err
			}

			log.Printf("Running migrations: %s", use)
			return run(ctx, db)
		},
	}
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <migration_name>",
		Short: "Create a new SQL migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// New files go to disk, not to the embedded set
			goose.SetBaseFS(nil)
			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set dialect: %w", err)
			}

			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create migrations directory: %w", err)
			}
			if err := goose.Create(nil, opts.Dir, args[0], "sql"); err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			log.Printf("Created migration: %s", args[0])
			return nil
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog and customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := pg.NewPostgresDB(ctx, cfg.PostgresDSN(), pg.DefaultPoolOptions(), zap.NewNop())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Seed(ctx, db); err != nil {
				return err
			}
			log.Printf("Seeded %d books and %d customers", len(storage.DemoBooks), len(storage.DemoCustomers))
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.UseMockDB {
		return nil, fmt.Errorf("USE_MOCK_DB is set; migrations need a real database")
	}
	return cfg, nil
}

func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := pg.OpenSQL(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to Postgres successfully")
	return db, nil
}
