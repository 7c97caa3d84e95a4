package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

const (
	// StorageDriverMemory хранит корзины и outbox в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит корзины и outbox в PostgreSQL.
	StorageDriverPostgres = "postgres"

	// CatalogSourceStatic — встроенный каталог.
	CatalogSourceStatic = "static"
	// CatalogSourcePostgres — каталог из таблицы catalog_products.
	CatalogSourcePostgres = "postgres"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	HTTPAddr       string
	MetricsAddr    string
	GRPCHealthAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	CatalogSource       string

	KafkaBrokers    string
	KafkaClientID   string
	CartEventsTopic string
	DLQTopic        string

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
	SessionCookieSecure  bool
	SessionCookieMaxAge  time.Duration
	StreamHeartbeat      time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending и OutboxMaxAge — пороги degraded-статуса; 0 отключает проверку.
	OutboxMaxPending int
	OutboxMaxAge     time.Duration

	Money money.Config

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		MetricsAddr:          ":9090",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		CatalogSource:        CatalogSourceStatic,
		KafkaClientID:        "storefront",
		CartEventsTopic:      kafka.TopicCartEvents,
		DLQTopic:             kafka.TopicDeadLetterQueue,
		SessionIdleTTL:       30 * time.Minute,
		SessionSweepInterval: time.Minute,
		SessionCookieMaxAge:  30 * 24 * time.Hour,
		StreamHeartbeat:      15 * time.Second,
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     200 * time.Millisecond,
		OutboxMaxPending:     1000,
		OutboxMaxAge:         5 * time.Minute,
		Money:                money.DefaultConfig(),
		ShutdownTimeout:      10 * time.Second,
	}
}

// Validate проверяет согласованность настроек и возвращает все найденные проблемы разом.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics addr is required"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	switch c.CatalogSource {
	case CatalogSourceStatic, CatalogSourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported catalog source %q", c.CatalogSource))
	}
	if c.usesPostgres() && c.PostgresDSN == "" {
		errs = append(errs, errors.New("postgres dsn is required for postgres storage or catalog"))
	}

	if c.KafkaBrokers != "" && (c.CartEventsTopic == "" || c.DLQTopic == "") {
		errs = append(errs, errors.New("kafka topics must be set when brokers are configured"))
	}

	if c.SessionIdleTTL <= 0 {
		errs = append(errs, errors.New("session idle ttl must be positive"))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("session sweep interval must be positive"))
	}
	if c.StreamHeartbeat <= 0 {
		errs = append(errs, errors.New("stream heartbeat must be positive"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}
	if c.OutboxMaxPending < 0 || c.OutboxMaxAge < 0 {
		errs = append(errs, errors.New("outbox backlog thresholds must not be negative"))
	}
	if _, err := money.NewFormatter(c.Money); err != nil {
		errs = append(errs, fmt.Errorf("money: %w", err))
	}

	return errors.Join(errs...)
}

func (c Config) usesPostgres() bool {
	return c.StorageDriver == StorageDriverPostgres || c.CatalogSource == CatalogSourcePostgres
}
