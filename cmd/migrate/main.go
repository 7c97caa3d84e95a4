package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "command: up|down|status|seed-catalog")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		fail("%s (or -dsn) is required", envPostgresDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := run(ctx, store, direction, steps, os.Stdout); err != nil {
		fail("%v", err)
	}
}

// run выполняет команду над открытым хранилищем и печатает итог в out.
func run(ctx context.Context, store *postgres.Store, direction string, steps int, out io.Writer) error {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, store, "migrate up ok", out)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, store, "migrate down ok", out)
	case "status":
		return printStatus(ctx, store, "migration status", out)
	case "seed-catalog":
		count, err := seedCatalog(store)
		if err != nil {
			return fmt.Errorf("seed catalog failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "seed catalog ok: products=%d\n", count)
		return nil
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status|seed-catalog)", direction)
	}
}

func printStatus(ctx context.Context, store *postgres.Store, prefix string, out io.Writer) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, len(state.Pending))
	return nil
}

// seedCatalog переносит встроенный каталог в catalog_products (upsert по id).
func seedCatalog(store *postgres.Store) (int, error) {
	static, err := catalog.NewStatic()
	if err != nil {
		return 0, err
	}
	products, err := static.List(domain.ProductFilter{})
	if err != nil {
		return 0, err
	}

	db, err := catalog.OpenGorm(store.DB())
	if err != nil {
		return 0, err
	}
	if err := catalog.NewGormRepository(db).Seed(products); err != nil {
		return 0, err
	}
	return len(products), nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
