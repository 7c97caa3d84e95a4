package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты записи и восстановления корзины.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultCorrupt  = "corrupt"
)

// CartMetrics содержит метрики движка корзины и реестра сессий.
type CartMetrics struct {
	// Переходы состояния по операциям.
	mutations *prometheus.CounterVec
	noops     *prometheus.CounterVec

	// Сохранение и восстановление.
	persists        *prometheus.CounterVec
	persistDuration prometheus.Histogram
	restores        *prometheus.CounterVec

	// Текущие значения.
	subscribers    prometheus.Gauge
	activeSessions prometheus.Gauge
	cartValue      prometheus.Histogram
}

// NewCartMetrics создаёт метрики в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer создаёт метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of applied cart state transitions grouped by operation.",
		}, []string{"op"}),
		noops: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_noop_total",
			Help: "Total number of cart commands that referenced a missing line item.",
		}, []string{"op"}),
		persists: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_persist_total",
			Help: "Total number of cart snapshot writes grouped by result.",
		}, []string{"result"}),
		persistDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_cart_persist_duration_seconds",
			Help:    "Duration of cart snapshot writes in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		restores: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_restore_total",
			Help: "Total number of cart rehydrations grouped by result.",
		}, []string{"result"}),
		subscribers: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_cart_subscribers",
			Help: "Number of active cart change subscribers.",
		}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Number of sessions with a live cart engine.",
		}),
		cartValue: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_cart_value_minor",
			Help:    "Cart total in minor currency units observed after item mutations.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// Все методы допускают nil-получатель: движок работает и без метрик.

// RecordMutation учитывает применённый переход состояния.
func (m *CartMetrics) RecordMutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}

// RecordNoop учитывает команду, не изменившую корзину.
func (m *CartMetrics) RecordNoop(op string) {
	if m == nil {
		return
	}
	m.noops.WithLabelValues(op).Inc()
}

// RecordPersist учитывает запись снимка корзины и её длительность.
func (m *CartMetrics) RecordPersist(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.persists.WithLabelValues(result).Inc()
	m.persistDuration.Observe(duration.Seconds())
}

// RecordRestore учитывает восстановление корзины из хранилища.
func (m *CartMetrics) RecordRestore(result string) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result).Inc()
}

// RecordCartValue записывает сумму корзины после изменения позиций.
func (m *CartMetrics) RecordCartValue(totalMinor int64) {
	if m == nil {
		return
	}
	m.cartValue.Observe(float64(totalMinor))
}

// SubscriberAdded увеличивает число подписчиков.
func (m *CartMetrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

// SubscriberRemoved уменьшает число подписчиков.
func (m *CartMetrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

// SetActiveSessions фиксирует число живых сессий.
func (m *CartMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
