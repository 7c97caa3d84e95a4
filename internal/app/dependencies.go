package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies — хранилища и каталог, выбранные конфигурацией.
type runtimeDependencies struct {
	cartStore      domain.CartStore
	outboxRepo     domain.OutboxRepository
	catalog        domain.CatalogProvider
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилища. Для postgres одно подключение обслуживает
// корзины, outbox и каталог.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	var store *postgres.Store
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps.cartStore = memory.NewCartStore()
		deps.outboxRepo = memory.NewOutboxRepository()
	case StorageDriverPostgres:
		var err error
		if store, err = openPostgres(ctx, cfg, logger); err != nil {
			return nil, err
		}
		deps.cartStore = postgres.NewCartStore(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.CatalogSource {
	case CatalogSourceStatic, "":
		static, err := catalog.NewStatic()
		if err != nil {
			closeStore(store, logger)
			return nil, fmt.Errorf("load static catalog: %w", err)
		}
		deps.catalog = static
	case CatalogSourcePostgres:
		if store == nil {
			var err error
			if store, err = openPostgres(ctx, cfg, logger); err != nil {
				return nil, err
			}
		}
		db, err := catalog.OpenGorm(store.DB())
		if err != nil {
			closeStore(store, logger)
			return nil, err
		}
		deps.catalog = catalog.NewGormRepository(db)
	default:
		closeStore(store, logger)
		return nil, fmt.Errorf("unsupported catalog source %q", cfg.CatalogSource)
	}

	if store != nil {
		deps.storageChecker = healthcheck.NewSimpleChecker("postgres", store.Ping)
		deps.closeFn = store.Close
	}

	logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"catalog": cfg.CatalogSource,
	}).Info("storage initialized")
	return deps, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*postgres.Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			closeStore(store, logger)
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}
	return store, nil
}

func closeStore(store *postgres.Store, logger *log.Entry) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
