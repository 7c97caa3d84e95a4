package domain

import (
	"context"
	"time"
)

// CatalogProvider отдаёт неизменяемые записи каталога.
type CatalogProvider interface {
	// List возвращает товары, прошедшие фильтр, в порядке каталога.
	List(filter ProductFilter) ([]Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// Categories возвращает список категорий для фильтра.
	Categories() ([]string, error)
	// Materials возвращает список материалов для фильтра.
	Materials() ([]string, error)
}

// CartStore — абстрактное key-value хранилище сохранённых корзин с ключом по сессии.
type CartStore interface {
	// Load возвращает сохранённые байты или ErrCartSnapshotNotFound.
	Load(ctx context.Context, sessionID string) ([]byte, error)
	// Save перезаписывает корзину сессии (last write wins).
	Save(ctx context.Context, sessionID string, payload []byte) error
	// Delete удаляет корзину сессии; отсутствие записи не ошибка.
	Delete(ctx context.Context, sessionID string) error
}

// CheckoutService — точка вызова оформления заказа.
type CheckoutService interface {
	Checkout(ctx context.Context, sessionID string, cart CartSnapshot) error
}

// OutboxPublisher публикует события из outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
