package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// maxQuantity ограничивает количество в одной команде.
const maxQuantity = 1_000_000

var errQuantityOutOfRange = fmt.Errorf("quantity must be between %d and %d", -maxQuantity, maxQuantity)

// GetCart обрабатывает GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// AddItem обрабатывает POST /api/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProductID == "" {
		writeErr(w, http.StatusBadRequest, domain.ErrProductIDRequired.Error())
		return
	}

	qty := 1
	if req.Quantity != nil {
		var err error
		if qty, err = toQuantity(*req.Quantity); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Товар проверяется до выдачи сессии: неизвестный товар не создаёт корзину.
	product, err := h.catalog.Get(req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	engine.AddItems(product, qty)
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// UpdateQuantity обрабатывает PATCH /api/cart/items/{productId}. Количество <= 0 удаляет позицию.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "quantity is required")
		return
	}
	qty, err := toQuantity(*req.Quantity)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	engine.UpdateQuantity(mux.Vars(r)["productId"], qty)
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// RemoveItem обрабатывает DELETE /api/cart/items/{productId}. Отсутствующая позиция не считается ошибкой.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	engine.RemoveItem(mux.Vars(r)["productId"])
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// ClearCart обрабатывает DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	engine.ClearCart()
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// SetDrawer обрабатывает PUT /api/cart/drawer.
func (h *Handler) SetDrawer(w http.ResponseWriter, r *http.Request) {
	var req drawerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Open == nil {
		writeErr(w, http.StatusBadRequest, "open is required")
		return
	}

	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	engine.SetDrawerOpen(*req.Open)
	writeJSON(w, http.StatusOK, h.toCartResponse(engine.Snapshot()))
}

// Checkout обрабатывает POST /api/cart/checkout. Корзина после вызова не меняется.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	snapshot := engine.Snapshot()
	if len(snapshot.Items) == 0 {
		h.writeError(w, r, domain.ErrCartEmpty)
		return
	}
	// Заказ оформляется по корзине, уже записанной в хранилище.
	if err := engine.Flush(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkout.Checkout(r.Context(), engine.SessionID(), snapshot); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.toCartResponse(snapshot))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// toQuantity отбрасывает дробную часть: 2.9 -> 2, -0.5 -> 0.
func toQuantity(value float64) (int, error) {
	if math.IsNaN(value) || value > maxQuantity || value < -maxQuantity {
		return 0, errQuantityOutOfRange
	}
	return int(math.Trunc(value)), nil
}
