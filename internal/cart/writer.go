package cart

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// snapshotWriter пишет снимки корзины в хранилище в отдельной горутине.
// Мутации не ждут записи; из нескольких ожидающих снимков пишется последний.
type snapshotWriter struct {
	sessionID string
	store     domain.CartStore
	logger    *log.Entry
	metrics   *metrics.CartMetrics
	timeout   time.Duration

	mu      sync.Mutex
	pending []domain.CartLineItem
	dirty   bool
	stopped bool

	wake      chan struct{}
	flushReq  chan chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSnapshotWriter(sessionID string, store domain.CartStore, logger *log.Entry, m *metrics.CartMetrics, timeout time.Duration) *snapshotWriter {
	w := &snapshotWriter{
		sessionID: sessionID,
		store:     store,
		logger:    logger,
		metrics:   m,
		timeout:   timeout,
		wake:      make(chan struct{}, 1),
		flushReq:  make(chan chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// submit ставит снимок в очередь на запись, не блокируя вызывающего.
// После остановки записи снимок не сохраняется: это учитывается как ошибка записи.
func (w *snapshotWriter) submit(items []domain.CartLineItem) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		w.metrics.RecordPersist(metrics.ResultError, 0)
		w.logger.WithField("lines", len(items)).Warn("cart writer is closed, snapshot not persisted")
		return
	}
	w.pending = items
	w.dirty = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) run() {
	defer close(w.done)

	for {
		select {
		case <-w.wake:
			w.writeLatest()
		case reply := <-w.flushReq:
			w.writeLatest()
			close(reply)
		case <-w.stop:
			w.mu.Lock()
			w.stopped = true
			w.mu.Unlock()
			w.writeLatest()
			return
		}
	}
}

func (w *snapshotWriter) writeLatest() {
	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return
	}
	items := w.pending
	w.pending = nil
	w.dirty = false
	w.mu.Unlock()

	start := time.Now()
	payload, err := EncodeSnapshot(items)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err = w.store.Save(ctx, w.sessionID, payload)
		cancel()
	}
	if err != nil {
		// Состояние в памяти остаётся источником истины; откат не выполняется.
		w.metrics.RecordPersist(metrics.ResultError, time.Since(start))
		w.logger.WithError(err).WithField("lines", len(items)).Error("failed to persist cart snapshot")
		return
	}
	w.metrics.RecordPersist(metrics.ResultOK, time.Since(start))
}

func (w *snapshotWriter) flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case w.flushReq <- reply:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *snapshotWriter) close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.stop)
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
