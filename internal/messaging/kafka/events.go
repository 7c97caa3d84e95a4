package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события корзины.
type EventType string

const (
	// EventTypeCartUpdated — изменился состав корзины.
	EventTypeCartUpdated EventType = "cart.updated"
	// EventTypeCartCleared — корзина очищена.
	EventTypeCartCleared EventType = "cart.cleared"
	// EventTypeDrawerToggled — покупатель открыл или закрыл панель корзины.
	EventTypeDrawerToggled EventType = "cart.drawer_toggled"
)

// AggregateTypeCart — тип агрегата событий корзины в outbox.
const AggregateTypeCart = "cart"

// Topics для Kafka
const (
	TopicCartEvents      = "storefront.cart.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
)

// CartEventLine — позиция корзины в событии.
type CartEventLine struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

// CartEvent описывает состояние корзины после перехода.
type CartEvent struct {
	EventType       EventType       `json:"event_type"`
	SessionID       string          `json:"session_id"`
	Revision        uint64          `json:"revision"`
	TotalItems      int             `json:"total_items"`
	TotalPriceMinor int64           `json:"total_price_minor"`
	DrawerOpen      bool            `json:"drawer_open"`
	Items           []CartEventLine `json:"items"`
	Timestamp       time.Time       `json:"timestamp"`
}

// NewCartEvent строит событие из снимка корзины.
func NewCartEvent(eventType EventType, sessionID string, snapshot domain.CartSnapshot) *CartEvent {
	lines := make([]CartEventLine, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, CartEventLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
		})
	}

	return &CartEvent{
		EventType:       eventType,
		SessionID:       sessionID,
		Revision:        snapshot.Revision,
		TotalItems:      snapshot.TotalItems,
		TotalPriceMinor: snapshot.TotalPriceMinor,
		DrawerOpen:      snapshot.DrawerOpen,
		Items:           lines,
		Timestamp:       time.Now().UTC(),
	}
}
