// Package catalog отдаёт неизменяемый каталог товаров витрины.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

//go:embed data/products.json
var embeddedProducts []byte

type productRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Material    string          `json:"material"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

// Static — каталог, загруженный из JSON при старте.
type Static struct {
	products []domain.Product
	byID     map[string]int
}

// NewStatic загружает встроенный каталог.
func NewStatic() (*Static, error) {
	return ParseStatic(embeddedProducts)
}

// ParseStatic строит каталог из JSON-массива товаров. Цены задаются десятичными строками в основных единицах.
func ParseStatic(payload []byte) (*Static, error) {
	var records []productRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Static{
		products: make([]domain.Product, 0, len(records)),
		byID:     make(map[string]int, len(records)),
	}
	for i, rec := range records {
		product := domain.Product{
			ID:          rec.ID,
			Name:        rec.Name,
			Category:    rec.Category,
			Material:    rec.Material,
			Description: rec.Description,
			PriceMinor:  ToMinor(rec.Price),
			Image:       rec.Image,
		}
		if errs := product.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("catalog entry %d: %w", i, errors.Join(errs...))
		}
		if _, dup := c.byID[product.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate product id %q", i, product.ID)
		}
		c.byID[product.ID] = len(c.products)
		c.products = append(c.products, product)
	}
	return c, nil
}

// ToMinor переводит цену в основных единицах в минимальные с банковским округлением.
func ToMinor(price decimal.Decimal) int64 {
	return price.Shift(money.MinorUnitScale).RoundBank(0).IntPart()
}

// List возвращает товары, прошедшие фильтр, в порядке каталога.
func (c *Static) List(filter domain.ProductFilter) ([]domain.Product, error) {
	return filterProducts(c.products, filter), nil
}

// Get возвращает товар по идентификатору.
func (c *Static) Get(id string) (domain.Product, error) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return c.products[idx], nil
}

// Categories возвращает категории в порядке первого появления.
func (c *Static) Categories() ([]string, error) {
	return distinct(c.products, func(p domain.Product) string { return p.Category }), nil
}

// Materials возвращает материалы в порядке первого появления.
func (c *Static) Materials() ([]string, error) {
	return distinct(c.products, func(p domain.Product) string { return p.Material }), nil
}

func filterProducts(products []domain.Product, filter domain.ProductFilter) []domain.Product {
	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.Matches(p) {
			result = append(result, p)
		}
	}
	return result
}

func distinct(products []domain.Product, field func(domain.Product) string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, p := range products {
		value := field(p)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

var _ domain.CatalogProvider = (*Static)(nil)
