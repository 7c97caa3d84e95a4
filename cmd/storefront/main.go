package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envLogLevel             = "STOREFRONT_LOG_LEVEL"
	envHTTPAddr             = "STOREFRONT_HTTP_ADDR"
	envMetricsAddr          = "STOREFRONT_METRICS_ADDR"
	envGRPCHealthAddr       = "STOREFRONT_GRPC_HEALTH_ADDR"
	envStorageDriver        = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN          = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate  = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envCatalogSource        = "STOREFRONT_CATALOG_SOURCE"
	envKafkaBrokers         = "STOREFRONT_KAFKA_BROKERS"
	envKafkaClientID        = "STOREFRONT_KAFKA_CLIENT_ID"
	envCartEventsTopic      = "STOREFRONT_CART_EVENTS_TOPIC"
	envDLQTopic             = "STOREFRONT_DLQ_TOPIC"
	envSessionIdleTTL       = "STOREFRONT_SESSION_IDLE_TTL"
	envSessionSweepInterval = "STOREFRONT_SESSION_SWEEP_INTERVAL"
	envSessionCookieSecure  = "STOREFRONT_SESSION_COOKIE_SECURE"
	envStreamHeartbeat      = "STOREFRONT_STREAM_HEARTBEAT"
	envOutboxPollInterval   = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize      = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts    = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay     = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending     = "STOREFRONT_OUTBOX_MAX_PENDING"
	envCurrency             = "STOREFRONT_CURRENCY"
	envCurrencySymbol       = "STOREFRONT_CURRENCY_SYMBOL"
	envLocale               = "STOREFRONT_LOCALE"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// readConfigFromEnv накладывает переменные окружения на конфигурацию по умолчанию.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	str := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, target *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*target = parsed
		}
	}
	integer := func(key string, target *int, valid func(int) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*target = parsed
		}
	}
	duration := func(key string, target *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*target = parsed
		}
	}
	positive := func(v time.Duration) bool { return v > 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envGRPCHealthAddr, &cfg.GRPCHealthAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envCatalogSource, &cfg.CatalogSource)
	cfg.CatalogSource = strings.ToLower(cfg.CatalogSource)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaClientID, &cfg.KafkaClientID)
	str(envCartEventsTopic, &cfg.CartEventsTopic)
	str(envDLQTopic, &cfg.DLQTopic)

	duration(envSessionIdleTTL, &cfg.SessionIdleTTL, positive, "must be > 0")
	duration(envSessionSweepInterval, &cfg.SessionSweepInterval, positive, "must be > 0")
	boolean(envSessionCookieSecure, &cfg.SessionCookieSecure)
	duration(envStreamHeartbeat, &cfg.StreamHeartbeat, positive, "must be > 0")

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, func(v int) bool { return v > 0 }, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, func(v int) bool { return v > 0 }, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, func(v int) bool { return v >= 0 }, "must be >= 0")

	str(envCurrency, &cfg.Money.Currency)
	cfg.Money.Currency = strings.ToUpper(cfg.Money.Currency)
	str(envCurrencySymbol, &cfg.Money.Symbol)
	str(envLocale, &cfg.Money.Language)

	return cfg, warnings
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", value)
	}
}

func parseInt(value string, valid func(int) bool, rule string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid int: %w", err)
	}
	if valid != nil && !valid(parsed) {
		return 0, errors.New(rule)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	if valid != nil && !valid(parsed) {
		return 0, errors.New(rule)
	}
	return parsed, nil
}

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	setupLogger(os.Getenv(envLogLevel))
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"catalog":      cfg.CatalogSource,
		"version":      version.GetVersion(),
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}
