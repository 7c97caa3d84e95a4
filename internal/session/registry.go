// Package session владеет движками корзин: один движок на сессию покупателя.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultIdleTTL = 30 * time.Minute

// EngineHook вызывается для каждого нового движка. Возвращённая функция вызывается при его закрытии.
type EngineHook func(*cart.Engine) (detach func())

// RegistryOptions задаёт параметры реестра сессий.
type RegistryOptions struct {
	Store   domain.CartStore
	Logger  *log.Entry
	Metrics *metrics.CartMetrics
	IdleTTL time.Duration
	Hooks   []EngineHook
	Clock   func() time.Time
}

// RegistryOption настраивает Registry.
type RegistryOption func(*RegistryOptions)

// WithStore задаёт хранилище корзин для всех движков.
func WithStore(store domain.CartStore) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.Store = store
	}
}

// WithLogger задаёт logger реестра.
func WithLogger(logger *log.Entry) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики движков и реестра.
func WithMetrics(m *metrics.CartMetrics) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.Metrics = m
	}
}

// WithIdleTTL задаёт время простоя, после которого движок выгружается.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.IdleTTL = ttl
	}
}

// WithEngineHook добавляет обработчик создания движка.
func WithEngineHook(hook EngineHook) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.Hooks = append(opts.Hooks, hook)
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) RegistryOption {
	return func(opts *RegistryOptions) {
		opts.Clock = clock
	}
}

type entry struct {
	engine   *cart.Engine
	lastSeen time.Time
	detach   []func()
}

// Registry хранит движки корзин активных сессий.
type Registry struct {
	store   domain.CartStore
	logger  *log.Entry
	metrics *metrics.CartMetrics
	ttl     time.Duration
	hooks   []EngineHook
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// ErrRegistryClosed возвращается Get после Close.
var ErrRegistryClosed = errors.New("session registry is closed")

// NewRegistry создаёт пустой реестр.
func NewRegistry(options ...RegistryOption) *Registry {
	opts := RegistryOptions{IdleTTL: defaultIdleTTL}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-registry")
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Registry{
		store:    opts.Store,
		logger:   logger,
		metrics:  opts.Metrics,
		ttl:      opts.IdleTTL,
		hooks:    opts.Hooks,
		now:      clock,
		sessions: make(map[string]*entry),
	}
}

// Get возвращает движок сессии, создавая и восстанавливая его при первом обращении.
func (r *Registry) Get(ctx context.Context, sessionID string) (*cart.Engine, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionIDRequired
	}

	if engine, ok, err := r.lookup(sessionID); err != nil || ok {
		return engine, err
	}

	// Восстановление идёт вне блокировки, чтобы медленное хранилище не блокировало другие сессии.
	engine := cart.NewEngine(sessionID,
		cart.WithStore(r.store),
		cart.WithLogger(r.logger.WithField("component", "cart-engine")),
		cart.WithMetrics(r.metrics),
	)
	// Ошибку восстановления логирует движок; сессия начинается с пустой корзины.
	_ = engine.Restore(ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = engine.Close(ctx)
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.sessions[sessionID]; ok {
		existing.lastSeen = r.now()
		r.mu.Unlock()
		_ = engine.Close(ctx)
		return existing.engine, nil
	}

	e := &entry{engine: engine, lastSeen: r.now()}
	for _, hook := range r.hooks {
		if detach := hook(engine); detach != nil {
			e.detach = append(e.detach, detach)
		}
	}
	r.sessions[sessionID] = e
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(active)
	r.logger.WithField("session_id", sessionID).Debug("cart session opened")
	return engine, nil
}

// Drop закрывает движок сессии и удаляет его из реестра. Сохранённая корзина остаётся.
func (r *Registry) Drop(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.metrics.SetActiveSessions(active)
	return r.release(ctx, sessionID, e)
}

// Reset закрывает движок сессии и удаляет её сохранённую корзину.
func (r *Registry) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrSessionIDRequired
	}
	if err := r.Drop(ctx, sessionID); err != nil {
		return err
	}
	if r.store == nil {
		return nil
	}
	if err := r.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete cart of session %s: %w", sessionID, err)
	}
	r.logger.WithField("session_id", sessionID).Debug("cart session reset")
	return nil
}

// Sweep выгружает движки, простаивающие дольше TTL, и возвращает их количество.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	expired := make(map[string]*entry)
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) >= r.ttl {
			expired[id] = e
			delete(r.sessions, id)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0, nil
	}
	r.metrics.SetActiveSessions(active)

	var errs []error
	for id, e := range expired {
		if err := r.release(ctx, id, e); err != nil {
			errs = append(errs, err)
		}
	}
	return len(expired), errors.Join(errs...)
}

// Len возвращает количество активных сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close закрывает все движки; последующие Get возвращают ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(0)

	var errs []error
	for id, e := range sessions {
		if err := r.release(ctx, id, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(sessionID string) (*cart.Engine, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	e.lastSeen = r.now()
	return e.engine, true, nil
}

func (r *Registry) release(ctx context.Context, sessionID string, e *entry) error {
	for _, detach := range e.detach {
		detach()
	}
	if err := e.engine.Close(ctx); err != nil {
		r.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to flush cart on session close")
		return err
	}
	r.logger.WithField("session_id", sessionID).Debug("cart session closed")
	return nil
}
