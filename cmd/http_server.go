package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payroll-ledger/api"
	"github.com/frahmantamala/payroll-ledger/db/migrations"
	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/auth"
	authPostgres "github.com/frahmantamala/payroll-ledger/internal/auth/postgres"
	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/payroll-ledger/internal/ledger/postgres"
	"github.com/frahmantamala/payroll-ledger/internal/notification"
	"github.com/frahmantamala/payroll-ledger/internal/salary"
	salaryPostgres "github.com/frahmantamala/payroll-ledger/internal/salary/postgres"
	"github.com/frahmantamala/payroll-ledger/internal/transport"
	"github.com/frahmantamala/payroll-ledger/internal/transport/rest"
	"github.com/frahmantamala/payroll-ledger/internal/user"
	userPostgres "github.com/frahmantamala/payroll-ledger/internal/user/postgres"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Schema     *goose.Provider
	Router     *chi.Mux
	EventBus   *events.EventBus
	Dispatcher *notification.Dispatcher
	Logger     *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.close()
	deps.Logger.Info("Server stopped")
}

// close drains in-flight event handlers before the queue and the pool go away.
func (d *Dependencies) close() {
	d.EventBus.Wait()
	if d.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.Dispatcher.Drain(ctx); err != nil {
			d.Logger.Warn("notifications left undelivered", "error", err)
		}
		cancel()
		d.Dispatcher.Shutdown()
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	base := transport.NewBaseHandler(deps.Logger)

	var publisher ledger.EventPublisher = deps.EventBus
	ledgerService := ledger.NewService(
		ledgerPostgres.NewStore(deps.Gorm),
		ledgerPostgres.NewReportRepository(deps.DB),
		publisher,
		cfg.Ledger,
		deps.Logger,
	)
	gate := ledgerService.Gate()

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), tokenGen, cfg.Security.BCryptCost).WithLogger(deps.Logger)

	policy, _ := ledger.ParseRatePolicy(cfg.Ledger.RatePolicy)
	userService := user.NewService(userPostgres.NewPostgresRepo(deps.DB), policy)
	salaryService := salary.NewService(salaryPostgres.NewSalaryRepository(deps.Gorm), gate, deps.Logger)

	checks := []rest.Check{rest.MigrationCheck(deps.Schema)}
	if deps.Dispatcher != nil {
		checks = append(checks, rest.NotificationCheck(deps.Dispatcher))
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, rest.Handlers{
		Auth:   auth.NewHandler(base, authService),
		User:   user.NewHandler(base, userService),
		Salary: salary.NewHandler(base, salaryService),
		Ledger: ledger.NewHandler(base, ledgerService),
	}, rest.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gate:           gate,
		HealthChecks:   checks,
	}, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(config)
	lg := logger.L()

	if _, err := api.Load(context.Background()); err != nil {
		return nil, err
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db, config.Observability.Logging.Level)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	schema, err := migrations.NewProvider(goose.DialectPostgres, db.DB, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	eventBus := events.NewEventBus(lg)
	dispatcher := initNotifications(config.Notification, eventBus, lg)

	return &Dependencies{
		Config:     config,
		Logger:     lg,
		DB:         db,
		Gorm:       gormDB,
		Schema:     schema,
		Router:     chi.NewRouter(),
		EventBus:   eventBus,
		Dispatcher: dispatcher,
	}, nil
}

// initNotifications returns nil when notifications are disabled.
func initNotifications(cfg internal.NotificationConfig, bus *events.EventBus, lg *slog.Logger) *notification.Dispatcher {
	if !cfg.Enabled {
		lg.Info("notifications disabled")
		return nil
	}

	dispatcher := notification.NewDispatcher(notification.Config{
		WebhookURL:   cfg.WebhookURL,
		Timeout:      cfg.Timeout,
		MaxWorkers:   cfg.MaxWorkers,
		JobQueueSize: cfg.JobQueueSize,
	}, lg)
	notification.NewEventHandler(dispatcher, lg).RegisterEventHandlers(bus)
	return dispatcher
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Open(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(db *sqlx.DB, level string) (*gorm.DB, error) {
	logLevel := gormLogger.Warn
	if level == "debug" {
		logLevel = gormLogger.Info
	}

	return gorm.Open(gormPostgres.New(gormPostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(logLevel),
	})
}
