// Package events превращает переходы корзины в сообщения outbox.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const defaultBufferSize = 1024

var cartEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_cart_events_recorded_total",
	Help: "Total number of cart events handed to the outbox grouped by result.",
}, []string{"result"})

// Options задаёт параметры Recorder.
type Options struct {
	Logger     *log.Entry
	BufferSize int
	OnEnqueue  func()
}

// Option настраивает Recorder.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithBufferSize задаёт размер очереди между движками и outbox.
func WithBufferSize(size int) Option {
	return func(opts *Options) {
		opts.BufferSize = size
	}
}

// WithOnEnqueue задаёт функцию, вызываемую после записи события в outbox (например, Worker.Notify).
func WithOnEnqueue(fn func()) Option {
	return func(opts *Options) {
		opts.OnEnqueue = fn
	}
}

// Recorder подписывается на движки корзин и складывает события в outbox.
// Подписчик только ставит событие в очередь: запись в outbox идёт в Run и не задерживает переходы.
// При переполнении очереди событие отбрасывается: аналитика не должна влиять на корзину.
type Recorder struct {
	repo      domain.OutboxRepository
	logger    *log.Entry
	onEnqueue func()
	queue     chan domain.OutboxMessage
}

// NewRecorder создаёт Recorder поверх outbox-репозитория.
func NewRecorder(repo domain.OutboxRepository, options ...Option) *Recorder {
	opts := Options{BufferSize: defaultBufferSize}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-events")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	return &Recorder{
		repo:      repo,
		logger:    logger,
		onEnqueue: opts.OnEnqueue,
		queue:     make(chan domain.OutboxMessage, opts.BufferSize),
	}
}

// Attach подписывает Recorder на движок и возвращает функцию отписки.
func (r *Recorder) Attach(engine *cart.Engine) func() {
	sessionID := engine.SessionID()

	var mu sync.Mutex
	previous := engine.Snapshot()

	return engine.Subscribe(func(snapshot domain.CartSnapshot) {
		mu.Lock()
		eventType, changed := classify(previous, snapshot)
		previous = snapshot
		mu.Unlock()

		if !changed {
			return
		}
		r.record(eventType, sessionID, snapshot)
	})
}

// Run переносит события из очереди в outbox до отмены ctx, затем дописывает остаток очереди.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case msg := <-r.queue:
			r.enqueue(msg)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case msg := <-r.queue:
			r.enqueue(msg)
		default:
			return
		}
	}
}

func (r *Recorder) record(eventType kafka.EventType, sessionID string, snapshot domain.CartSnapshot) {
	payload, err := json.Marshal(kafka.NewCartEvent(eventType, sessionID, snapshot))
	if err != nil {
		cartEventsRecorded.WithLabelValues("error").Inc()
		r.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to encode cart event")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeCart,
		AggregateID:   sessionID,
		EventType:     string(eventType),
		Payload:       payload,
	}

	select {
	case r.queue <- msg:
	default:
		cartEventsRecorded.WithLabelValues("dropped").Inc()
		r.logger.WithFields(log.Fields{
			"session_id": sessionID,
			"event_type": eventType,
		}).Warn("cart event queue is full, event dropped")
	}
}

func (r *Recorder) enqueue(msg domain.OutboxMessage) {
	if _, err := r.repo.Enqueue(msg); err != nil {
		cartEventsRecorded.WithLabelValues("error").Inc()
		r.logger.WithError(err).WithFields(log.Fields{
			"session_id": msg.AggregateID,
			"event_type": msg.EventType,
		}).Warn("failed to enqueue cart event")
		return
	}
	cartEventsRecorded.WithLabelValues("ok").Inc()
	if r.onEnqueue != nil {
		r.onEnqueue()
	}
}

// classify определяет тип события по паре соседних снимков.
// Переход без изменений товаров и шторки (повторный SetDrawerOpen) события не порождает.
func classify(previous, current domain.CartSnapshot) (kafka.EventType, bool) {
	if sameItems(previous.Items, current.Items) {
		if previous.DrawerOpen == current.DrawerOpen {
			return "", false
		}
		return kafka.EventTypeDrawerToggled, true
	}
	if len(current.Items) == 0 {
		return kafka.EventTypeCartCleared, true
	}
	return kafka.EventTypeCartUpdated, true
}

func sameItems(a, b []domain.CartLineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProductID != b[i].ProductID || a[i].Quantity != b[i].Quantity {
			return false
		}
	}
	return true
}
