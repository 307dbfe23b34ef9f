package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/preston-bernstein/gaffer-service/internal/config"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/store/postgres"
	"github.com/preston-bernstein/gaffer-service/internal/store/redis"
	"github.com/preston-bernstein/gaffer-service/internal/store/sqlite"
)

// Backend openers stay vars so tests can stand in for external databases.
var (
	openSQLite = func(ctx context.Context, path string) (store.Store, error) {
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	openPostgres = func(ctx context.Context, dsn string) (store.Store, error) {
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	openRedis = func(ctx context.Context, rawURL string) (store.Store, error) {
		s, err := redis.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
)

// storeFactory opens the configured backend and wraps it with retries.
type storeFactory struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func newStoreFactory(logger *slog.Logger, metrics *metrics.Recorder) storeFactory {
	return storeFactory{logger: logger, metrics: metrics}
}

func (f storeFactory) build(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	backend := cfg.Resolve()
	if backend.Warning != "" {
		logging.Warn(f.logger, backend.Warning)
	}

	base, err := openBackend(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend.Driver, err)
	}
	logging.Info(f.logger, "store ready", logging.FieldBackend, backend.Driver)
	return store.NewRetrying(base, f.logger, f.metrics, cfg.RetryAttempts, cfg.RetryBackoff), nil
}

func openBackend(ctx context.Context, backend config.Backend) (store.Store, error) {
	switch backend.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverPostgres:
		return openPostgres(ctx, backend.DSN)
	case config.DriverRedis:
		return openRedis(ctx, backend.DSN)
	default:
		return openSQLite(ctx, backend.DSN)
	}
}
