package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/db"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/redis"
	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	boltstore "github.com/bugisthegod/techmart-storefront/pkg/storage/bbolt"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/memory"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/sqlstore"
)

// OpenStore opens the storage backend selected by cfg.Storage.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	ctx = logg.WithField(ctx, "storage_driver", driver)

	var (
		store storage.Store
		err   error
	)
	switch driver {
	case config.StorageMemory:
		store = memory.New()
	case config.StorageBBolt:
		store, err = boltstore.Open(cfg.Storage.Path, cfg.Storage.KeyPrefix)
	case config.StorageRedis:
		store, err = redis.New(ctx, cfg.Redis, cfg.Storage.KeyPrefix)
	case config.StorageSQLite:
		store, err = openSQL(ctx, config.StorageSQLite, cfg.Storage.Path, cfg.DB, logg)
	case config.StoragePostgres:
		store, err = openSQL(ctx, config.StoragePostgres, cfg.DB.DSN, cfg.DB, logg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		logg.Error(ctx, "storage.open_failed", err)
		return nil, err
	}
	logg.Info(ctx, "storage.opened")
	return store, nil
}

func openSQL(ctx context.Context, driver, dsn string, cfg config.DBConfig, logg *logger.Logger) (storage.Store, error) {
	client, err := db.New(ctx, driver, dsn, cfg, logg)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.New(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}
