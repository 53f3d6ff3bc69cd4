package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relaycrm/sync-engine/pkg/config"
	"github.com/relaycrm/sync-engine/pkg/database"
	"github.com/relaycrm/sync-engine/pkg/logging"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
	"github.com/relaycrm/sync-engine/pkg/repositories"
	"github.com/relaycrm/sync-engine/pkg/retry"
	"github.com/relaycrm/sync-engine/pkg/services"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Local runs keep their secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting sync engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Duration("run_timeout", cfg.Sync.RunTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Sync.RunTimeout)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Sync run failed", zap.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// Migrations run through database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		sqlDB.Close()
		return err
	}
	sqlDB.Close()

	client, err := pipedrive.NewClient(&pipedrive.Config{
		BaseURL:   cfg.Pipedrive.BaseURL,
		APIToken:  cfg.Pipedrive.APIToken,
		PageLimit: cfg.Pipedrive.PageLimit,
		Timeout:   cfg.Pipedrive.RequestTimeout,
		Retry: &retry.Policy{
			MaxAttempts:  cfg.Pipedrive.MaxAttempts,
			InitialDelay: cfg.Pipedrive.InitialBackoff,
			Multiplier:   2.0,
		},
	}, logger)
	if err != nil {
		return err
	}

	personRepo := repositories.NewPersonRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)

	mapper := services.NewFieldMapper(client, logger)
	matcher := services.NewMatcher(logger)
	reconciler := services.NewReconciler(personRepo, orgRepo, client, logger)
	sync := services.NewSyncService(mapper, matcher, reconciler, client, personRepo, orgRepo, logger)

	report, err := sync.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("Sync report",
		zap.Time("started_at", report.StartedAt),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		zap.Any("organizations", report.Organizations),
		zap.Any("people", report.People))

	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	return cfg.Build()
}
