package app

import (
	"context"
	"fmt"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	migrateTimeout = 30 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App owns the process-wide resources. DB is nil on the memory backend.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Store  repositories.Store
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		utils.Logger.Warn("Using in-memory store; data is lost on restart.")
		return &App{Config: cfg, Store: repositories.NewMemoryStore()}, nil
	}

	var (
		dbPool  *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)

	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		dbPool, err = newDBPool(ctx, cfg.DBUrl)
		cancel()
		if err == nil {
			utils.Logger.Infof("%s connected to DB on attempt %d", cfg.AppName, i)
			break
		}

		utils.Logger.WithError(err).Warnf(
			"Failed DB connect on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)

		if i == maxRetries {
			return nil, fmt.Errorf("unable to connect after %d attempts: %w", maxRetries, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()
		if err := repositories.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		utils.Logger.Info("Database schema is up to date.")
	}

	return &App{
		Config: cfg,
		DB:     dbPool,
		Store:  repositories.NewPgStore(dbPool),
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Infof("%s DB connection closed.", a.Config.AppName)
	}
}

func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}
