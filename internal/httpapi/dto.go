package httpapi

import (
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Material     string `json:"material"`
	Description  string `json:"description"`
	PriceMinor   int64  `json:"price_minor"`
	PriceDisplay string `json:"price_display"`
	Image        string `json:"image"`
}

type catalogResponse struct {
	Products   []productResponse `json:"products"`
	Categories []string          `json:"categories"`
	Materials  []string          `json:"materials"`
}

type lineItemResponse struct {
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	Image            string `json:"image"`
	Quantity         int    `json:"quantity"`
	PriceMinor       int64  `json:"price_minor"`
	PriceDisplay     string `json:"price_display"`
	LineTotalMinor   int64  `json:"line_total_minor"`
	LineTotalDisplay string `json:"line_total_display"`
}

type cartResponse struct {
	Items             []lineItemResponse `json:"items"`
	TotalItems        int                `json:"total_items"`
	TotalPriceMinor   int64              `json:"total_price_minor"`
	TotalPriceDisplay string             `json:"total_price_display"`
	DrawerOpen        bool               `json:"drawer_open"`
	Revision          uint64             `json:"revision"`
}

// addItemRequest описывает тело POST /api/cart/items. Quantity по умолчанию 1.
type addItemRequest struct {
	ProductID string   `json:"productId"`
	Quantity  *float64 `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

type drawerRequest struct {
	Open *bool `json:"open"`
}

func (h *Handler) toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Material:     p.Material,
		Description:  p.Description,
		PriceMinor:   p.PriceMinor,
		PriceDisplay: h.formatter.Format(p.PriceMinor),
		Image:        p.Image,
	}
}

func (h *Handler) toCartResponse(snapshot domain.CartSnapshot) cartResponse {
	items := make([]lineItemResponse, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		total := item.TotalMinor()
		items = append(items, lineItemResponse{
			ProductID:        item.ProductID,
			Name:             item.Name,
			Category:         item.Category,
			Image:            item.Image,
			Quantity:         item.Quantity,
			PriceMinor:       item.PriceMinor,
			PriceDisplay:     h.formatter.Format(item.PriceMinor),
			LineTotalMinor:   total,
			LineTotalDisplay: h.formatter.Format(total),
		})
	}

	return cartResponse{
		Items:             items,
		TotalItems:        snapshot.TotalItems,
		TotalPriceMinor:   snapshot.TotalPriceMinor,
		TotalPriceDisplay: h.formatter.Format(snapshot.TotalPriceMinor),
		DrawerOpen:        snapshot.DrawerOpen,
		Revision:          snapshot.Revision,
	}
}
