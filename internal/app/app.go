package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"libraryloans/internal/config"
	"libraryloans/internal/handlers"
	"libraryloans/internal/ledger"
	"libraryloans/internal/notify"
	"libraryloans/internal/storage"
	"libraryloans/internal/storage/pg"
	"libraryloans/internal/storage/stubs"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	db       storage.Storage
	notifier notify.Notifier
	ledger   *ledger.Ledger
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting library loans service...")

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initNotifier()
	app.ledger = ledger.New(app.db, app.notifier, logger)

	// Initialize HTTP server
	if err := app.initHTTPServer(); err != nil {
		return nil, err
	}

	return app, nil
}

// newLogger builds the production logger, or the development one for APP_ENV=development
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

// initDatabase initializes the database connection
func (a *App) initDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	} else {
		dsn := a.config.PostgresDSN()

		if a.config.MigrationsOnStart {
			a.logger.Info("Applying migrations")
			if err := pg.MigrateDSN(ctx, dsn); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		opts := pg.DefaultPoolOptions()
		opts.MaxConns = a.config.DBMaxConns
		if opts.MinConns > opts.MaxConns {
			opts.MinConns = opts.MaxConns
		}

		a.logger.Info("Connecting to Postgres", zap.Int32("max_conns", opts.MaxConns))
		postgresDB, err := pg.NewPostgresDB(ctx, dsn, opts, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		db = postgresDB
	}

	// Initialize database schema and default data
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initNotifier sets up loan notifications. A broken Telegram setup is logged and notifications are disabled.
func (a *App) initNotifier() {
	a.notifier = notify.Nop{}
	if !a.config.NotificationsEnabled() {
		return
	}

	telegram, err := notify.NewTelegram(a.config.TelegramToken, a.config.TelegramNotifyChatID, a.logger)
	if err != nil {
		a.logger.Warn("Loan notifications disabled", zap.Error(err))
		return
	}
	a.notifier = telegram
}

// initHTTPServer builds the router and the HTTP server
func (a *App) initHTTPServer() error {
	gin.SetMode(a.config.GinMode)

	router, err := handlers.NewRouter(
		handlers.NewHandler(a.ledger, a.logger),
		a.logger,
		handlers.RouterOptions{AllowedOrigins: a.config.AllowedOrigins},
	)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	a.server = &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or a server failure
	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errChan:
		a.logger.Error("HTTP server error", zap.Error(err))
		a.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}

	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	defer a.logger.Sync() //nolint:errcheck

	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
