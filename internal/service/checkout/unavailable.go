// Package checkout содержит реализации точки оформления заказа.
package checkout

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Unavailable — оформление заказа не подключено: любой вызов возвращает ErrCheckoutUnavailable.
type Unavailable struct{}

// Checkout отклоняет оформление заказа.
func (Unavailable) Checkout(_ context.Context, _ string, _ domain.CartSnapshot) error {
	return domain.ErrCheckoutUnavailable
}

var _ domain.CheckoutService = Unavailable{}
