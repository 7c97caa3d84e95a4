package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product id is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartSnapshotNotFound возвращается хранилищем, если для сессии нет сохранённой корзины.
	ErrCartSnapshotNotFound = errors.New("cart snapshot not found")
	// ErrCartSnapshotCorrupt — сохранённую корзину не удалось разобрать.
	ErrCartSnapshotCorrupt = errors.New("cart snapshot is corrupt")
	// ErrCartSnapshotVersion — неизвестная версия схемы сохранённой корзины.
	ErrCartSnapshotVersion = errors.New("unsupported cart snapshot version")
	// ErrSessionIDRequired — пустой идентификатор сессии.
	ErrSessionIDRequired = errors.New("session id is required")
	// ErrCheckoutUnavailable — оформление заказа не подключено.
	ErrCheckoutUnavailable = errors.New("checkout is not available")
	// ErrCartEmpty — попытка оформить пустую корзину.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsSnapshotUnreadable проверяет, что сохранённую корзину нельзя восстановить.
func IsSnapshotUnreadable(err error) bool {
	return errors.Is(err, ErrCartSnapshotCorrupt) || errors.Is(err, ErrCartSnapshotVersion)
}
