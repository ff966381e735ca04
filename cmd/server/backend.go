package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	mandateservice "bureau/internal/mandate/service"
	mandatestore "bureau/internal/mandate/store"
	"bureau/internal/platform/cache"
	"bureau/internal/platform/config"
	"bureau/internal/platform/database"
	"bureau/internal/platform/redis"
)

// backend bundles the storage and cache chosen by configuration.
type backend struct {
	store mandateservice.Store
	tx    mandateservice.MandateStoreTx
	cache cache.Cache
	// sweeper is set for the in-process cache and must run for expiry sweeps.
	sweeper *cache.MemoryCache

	checks  map[string]func(context.Context) error
	closers []func() error
}

func (b *backend) Close() error {
	var result *multierror.Error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func openBackend(ctx context.Context, cfg config.Server, logger *slog.Logger) (*backend, error) {
	b := &backend{checks: map[string]func(context.Context) error{}}
	if err := b.openStorage(ctx, cfg, logger); err != nil {
		_ = b.Close()
		return nil, err
	}
	if err := b.openCache(ctx, cfg, logger); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backend) openStorage(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		st := mandatestore.NewPostgres(db)
		b.store = st
		b.tx = newMandatePostgresTx(db, cfg.TxTimeout)
		b.checks["storage"] = st.Ping

	case config.StorageSQLite:
		st, err := mandatestore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, st.Close)
		b.store = st
		b.tx = newMandateSQLiteTx(st, cfg.TxTimeout)
		b.checks["storage"] = st.Ping

	case config.StorageMemory:
		st := mandatestore.NewInMemory()
		for id := int64(1); id <= int64(cfg.Storage.SeedMembers); id++ {
			st.AddMember(id)
		}
		b.store = st
		b.tx = mandateservice.NewShardedTx(st, cfg.TxTimeout)
		b.checks["storage"] = st.Ping

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	logger.InfoContext(ctx, "mandate storage ready", "driver", cfg.Storage.Driver)
	return nil
}

func (b *backend) openCache(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, client.Close)
		b.cache = cache.NewRedis(client.Client, cfg.Cache.TTL, cache.WithKeyPrefix(cfg.Cache.KeyPrefix))
		b.checks["cache"] = client.Health

	case config.CacheMemory:
		mem := cache.NewMemory(cfg.Cache.TTL, cfg.Cache.CheckPeriod)
		b.cache = mem
		b.sweeper = mem

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	logger.InfoContext(ctx, "response cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)
	return nil
}
