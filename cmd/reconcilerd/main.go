package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	zapadapter "github.com/paybridge/gateway-reconciler/internal/adapters/logger"
	adapterports "github.com/paybridge/gateway-reconciler/internal/adapters/ports"
	"github.com/paybridge/gateway-reconciler/internal/adapters/postgres"
	"github.com/paybridge/gateway-reconciler/internal/adapters/secrets"
	"github.com/paybridge/gateway-reconciler/internal/config"
	"github.com/paybridge/gateway-reconciler/internal/services/reconciliation"
	"github.com/paybridge/gateway-reconciler/internal/services/tenant"
	httpclient "github.com/paybridge/gateway-reconciler/pkg/http"
	"github.com/paybridge/gateway-reconciler/pkg/observability"
	"github.com/paybridge/gateway-reconciler/pkg/resilience"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting gateway reconciler",
		zap.String("version", "0.1.0"),
	)

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secretManager, err := initSecretManager(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}

	// Wire the reconciliation core
	portLogger := zapadapter.NewZapLogger(logger)
	db := postgres.NewDBExecutor(dbPool)
	txns := postgres.NewTransactionRepository(db)
	rows := postgres.NewResponseRowRepository(db)

	reportingClient := httpclient.NewHTTPClient(httpclient.ReportingClientConfig(), 30*time.Second)
	configStore := tenant.NewSecretConfigStore(secretManager, cfg.Secrets.PathPrefix, portLogger)
	resolver := tenant.NewService(configStore, reportingClient, portLogger)

	janitor := reconciliation.NewJanitor(resolver, rows, portLogger)
	sweeper := reconciliation.NewSweeper(
		txns,
		janitor,
		cfg.Sweeper.Tenants,
		cfg.Sweeper.Interval,
		cfg.Sweeper.BatchSize,
		portLogger,
	)

	if len(cfg.Sweeper.Tenants) == 0 {
		logger.Warn("SWEEP_TENANTS is empty, nothing to reconcile")
	}

	go sweeper.Run(ctx)

	// Metrics, health and readiness endpoints
	healthChecker := observability.NewHealthChecker(dbPool)
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)
	logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Stopped")
}

// initLogger initializes the logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, _ := zapCfg.Build()
	return logger
}

// initDatabase initializes the PostgreSQL connection pool. The first ping is
// retried with backoff so the daemon survives starting before the database.
func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	backoff := resilience.DefaultExponentialBackoff()
	for attempt := 0; ; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return pool, nil
		}
		delay := backoff.NextDelay(attempt)
		logger.Warn("Database ping failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		case <-time.After(delay):
		}
	}
}

// initSecretManager selects the backend holding tenant reporting credentials
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (adapterports.SecretManagerAdapter, error) {
	switch cfg.Secrets.Backend {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
		awsCfg.Profile = cfg.Secrets.AWSProfile
		awsCfg.Endpoint = cfg.Secrets.AWSEndpoint
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
		vaultCfg.AuthMethod = cfg.Secrets.VaultAuthMethod
		vaultCfg.Token = cfg.Secrets.VaultToken
		vaultCfg.RoleID = cfg.Secrets.VaultRoleID
		vaultCfg.SecretID = cfg.Secrets.VaultSecretID
		vaultCfg.MountPath = cfg.Secrets.VaultMountPath
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)

	case "local":
		logger.Warn("Using local filesystem secret manager, development only",
			zap.String("path", cfg.Secrets.LocalBasePath))
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalBasePath, logger), nil

	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Secrets.Backend)
	}
}
