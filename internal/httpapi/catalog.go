package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ListProducts обрабатывает GET /api/products?category=&material=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ProductFilter{
		Category: query.Get("category"),
		Material: query.Get("material"),
	}

	products, err := h.catalog.List(filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	categories, err := h.catalog.Categories()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	materials, err := h.catalog.Materials()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := catalogResponse{
		Products:   make([]productResponse, 0, len(products)),
		Categories: append([]string{domain.FilterAll}, categories...),
		Materials:  append([]string{domain.FilterAll}, materials...),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, h.toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct обрабатывает GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(product))
}
