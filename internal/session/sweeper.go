package session

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const defaultSweepInterval = time.Minute

var (
	sessionSweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_session_sweep_runs_total",
		Help: "Total number of idle session sweeps grouped by result.",
	}, []string{"result"})
	sessionSweepExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_session_sweep_expired_total",
		Help: "Total number of cart engines unloaded after idle timeout.",
	})
)

// SweeperOptions задаёт параметры фоновой выгрузки простаивающих сессий.
type SweeperOptions struct {
	Logger   *log.Entry
	Interval time.Duration
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*SweeperOptions)

// WithSweeperLogger задаёт logger для воркера.
func WithSweeperLogger(logger *log.Entry) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задаёт интервал между проходами.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Interval = interval
	}
}

// Sweeper периодически вызывает Registry.Sweep.
type Sweeper struct {
	registry *Registry
	logger   *log.Entry
	interval time.Duration
}

// NewSweeper создаёт воркер выгрузки сессий.
func NewSweeper(registry *Registry, options ...SweeperOption) *Sweeper {
	opts := SweeperOptions{Interval: defaultSweepInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &Sweeper{
		registry: registry,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Run запускает периодические проходы до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.registry == nil {
		s.logger.Warn("session sweeper is disabled: registry is nil")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now().UTC())
		}
	}
}

// SweepOnce выполняет один проход и возвращает число выгруженных сессий.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) int {
	expired, err := s.registry.Sweep(ctx, now)
	if expired > 0 {
		sessionSweepExpiredTotal.Add(float64(expired))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return expired
		}
		sessionSweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("session sweep finished with errors")
		return expired
	}

	sessionSweepRunsTotal.WithLabelValues("ok").Inc()
	if expired > 0 {
		s.logger.WithFields(log.Fields{
			"expired": expired,
			"active":  s.registry.Len(),
		}).Info("idle cart sessions unloaded")
	}
	return expired
}
