package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultPersistTimeout = 3 * time.Second

// Имена операций для логов и метрик.
const (
	OpAddItem        = "add_item"
	OpRemoveItem     = "remove_item"
	OpUpdateQuantity = "update_quantity"
	OpClearCart      = "clear_cart"
	OpSetDrawerOpen  = "set_drawer_open"
)

// Options задаёт зависимости движка корзины.
type Options struct {
	Store          domain.CartStore
	Logger         *log.Entry
	Metrics        *metrics.CartMetrics
	PersistTimeout time.Duration
}

// Option настраивает Engine.
type Option func(*Options)

// WithStore задаёт хранилище для восстановления и сохранения корзины.
func WithStore(store domain.CartStore) Option {
	return func(opts *Options) {
		opts.Store = store
	}
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики движка.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithPersistTimeout ограничивает длительность одной записи в хранилище.
func WithPersistTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.PersistTimeout = timeout
	}
}

type subscriber struct {
	id     uint64
	fn     func(domain.CartSnapshot)
	active atomic.Bool
}

// Engine — единственный владелец состояния корзины сессии.
//
// Каждая операция выполняет один атомарный переход между полными состояниями.
// Подписчики вызываются синхронно после перехода, в порядке регистрации;
// вызывать мутации движка из подписчика нельзя (операции сериализованы opMu).
type Engine struct {
	sessionID string
	store     domain.CartStore
	logger    *log.Entry
	metrics   *metrics.CartMetrics

	// opMu сериализует переходы вместе с уведомлениями, mu защищает состояние для чтения.
	opMu       sync.Mutex
	mu         sync.RWMutex
	items      []domain.CartLineItem
	drawerOpen bool
	revision   uint64

	subMu     sync.Mutex
	subs      []*subscriber
	nextSubID uint64

	writer *snapshotWriter
}

// NewEngine создаёт пустую корзину для сессии.
func NewEngine(sessionID string, options ...Option) *Engine {
	opts := Options{PersistTimeout: defaultPersistTimeout}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-engine")
	}
	logger = logger.WithField("session_id", sessionID)

	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	e := &Engine{
		sessionID: sessionID,
		store:     opts.Store,
		logger:    logger,
		metrics:   opts.Metrics,
		items:     make([]domain.CartLineItem, 0),
	}
	if opts.Store != nil {
		e.writer = newSnapshotWriter(sessionID, opts.Store, logger, opts.Metrics, opts.PersistTimeout)
	}
	return e
}

// SessionID возвращает ключ сессии, которой принадлежит корзина.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Restore загружает сохранённую корзину. Ошибка не фатальна: корзина остаётся пустой.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	payload, err := e.store.Load(ctx, e.sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrCartSnapshotNotFound) {
			e.metrics.RecordRestore(metrics.ResultNotFound)
			return nil
		}
		e.metrics.RecordRestore(metrics.ResultError)
		e.logger.WithError(err).Warn("failed to load persisted cart, starting empty")
		return err
	}

	items, err := decodeSnapshot(payload)
	if err != nil {
		e.metrics.RecordRestore(metrics.ResultCorrupt)
		e.logger.WithError(err).Warn("persisted cart is unreadable, starting empty")
		return err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	e.items = items
	e.mu.Unlock()

	e.metrics.RecordRestore(metrics.ResultOK)
	e.logger.WithField("lines", len(items)).Debug("cart restored")
	return nil
}

// AddItem увеличивает количество позиции на 1 или добавляет новую позицию в конец.
func (e *Engine) AddItem(product domain.Product) {
	e.AddItems(product, 1)
}

// AddItems эквивалентен qty последовательным AddItem, но применяется одним переходом.
// qty <= 0 ничего не меняет.
func (e *Engine) AddItems(product domain.Product, qty int) {
	if qty <= 0 {
		e.metrics.RecordNoop(OpAddItem)
		return
	}

	e.apply(OpAddItem, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		if idx := indexOf(items, product.ID); idx >= 0 {
			items[idx].Quantity += qty
			return items, true
		}
		item := domain.NewLineItem(product)
		item.Quantity = qty
		return append(items, item), true
	})
}

// RemoveItem удаляет позицию целиком. Отсутствующий товар не считается ошибкой.
func (e *Engine) RemoveItem(productID string) {
	e.apply(OpRemoveItem, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		return removeAt(items, indexOf(items, productID))
	})
}

// UpdateQuantity устанавливает количество позиции. qty <= 0 равносильно RemoveItem.
func (e *Engine) UpdateQuantity(productID string, qty int) {
	if qty <= 0 {
		e.apply(OpUpdateQuantity, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
			return removeAt(items, indexOf(items, productID))
		})
		return
	}

	e.apply(OpUpdateQuantity, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		idx := indexOf(items, productID)
		if idx < 0 {
			return items, false
		}
		items[idx].Quantity = qty
		return items, true
	})
}

// ClearCart удаляет все позиции; состояние панели не меняется.
func (e *Engine) ClearCart() {
	e.apply(OpClearCart, func([]domain.CartLineItem) ([]domain.CartLineItem, bool) {
		return make([]domain.CartLineItem, 0), true
	})
}

// SetDrawerOpen задаёт видимость панели корзины. Не сохраняется в хранилище.
func (e *Engine) SetDrawerOpen(open bool) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	e.drawerOpen = open
	e.revision++
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.metrics.RecordMutation(OpSetDrawerOpen)
	e.notify(snapshot)
}

// Snapshot возвращает согласованное представление корзины.
func (e *Engine) Snapshot() domain.CartSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// Items возвращает копию позиций в порядке добавления.
func (e *Engine) Items() []domain.CartLineItem {
	return e.Snapshot().Items
}

// TotalItems возвращает сумму количеств всех позиций.
func (e *Engine) TotalItems() int {
	return e.Snapshot().TotalItems
}

// TotalPriceMinor возвращает сумму price*quantity по всем позициям.
func (e *Engine) TotalPriceMinor() int64 {
	return e.Snapshot().TotalPriceMinor
}

// DrawerOpen сообщает, открыта ли панель корзины.
func (e *Engine) DrawerOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.drawerOpen
}

// Subscribe регистрирует получателя снимков. Возвращённая функция снимает подписку:
// последующие переходы fn уже не получает. Повторный вызов безопасен.
func (e *Engine) Subscribe(fn func(domain.CartSnapshot)) func() {
	sub := &subscriber{fn: fn}
	sub.active.Store(true)

	e.subMu.Lock()
	e.nextSubID++
	sub.id = e.nextSubID
	e.subs = append(e.subs, sub)
	e.subMu.Unlock()
	e.metrics.SubscriberAdded()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)

			e.subMu.Lock()
			for i, s := range e.subs {
				if s.id == sub.id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					break
				}
			}
			e.subMu.Unlock()
			e.metrics.SubscriberRemoved()
		})
	}
}

// Flush дожидается записи последнего изменения в хранилище.
func (e *Engine) Flush(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	return e.writer.flush(ctx)
}

// Close записывает последнее изменение и останавливает фоновую запись.
func (e *Engine) Close(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	return e.writer.close(ctx)
}

// apply выполняет переход над позициями: мутация под блокировкой, затем сохранение и уведомления.
func (e *Engine) apply(op string, mutate func([]domain.CartLineItem) ([]domain.CartLineItem, bool)) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	items, changed := mutate(e.items)
	if !changed {
		e.mu.Unlock()
		e.metrics.RecordNoop(op)
		return
	}
	e.items = items
	e.revision++
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.metrics.RecordMutation(op)
	e.metrics.RecordCartValue(snapshot.TotalPriceMinor)
	e.logger.WithFields(log.Fields{
		"op":          op,
		"revision":    snapshot.Revision,
		"total_items": snapshot.TotalItems,
	}).Debug("cart state changed")

	if e.writer != nil {
		e.writer.submit(snapshot.Items)
	}
	e.notify(snapshot)
}

func (e *Engine) snapshotLocked() domain.CartSnapshot {
	return domain.NewCartSnapshot(e.items, e.drawerOpen, e.revision)
}

func (e *Engine) notify(snapshot domain.CartSnapshot) {
	e.subMu.Lock()
	subs := make([]*subscriber, len(e.subs))
	copy(subs, e.subs)
	e.subMu.Unlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		// Каждый подписчик получает собственную копию позиций.
		sub.fn(domain.NewCartSnapshot(snapshot.Items, snapshot.DrawerOpen, snapshot.Revision))
	}
}

func indexOf(items []domain.CartLineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func removeAt(items []domain.CartLineItem, idx int) ([]domain.CartLineItem, bool) {
	if idx < 0 {
		return items, false
	}
	return append(items[:idx:idx], items[idx+1:]...), true
}
