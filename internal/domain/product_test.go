package domain

import "testing"

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name     string
		product  Product
		errCount int
	}{
		{name: "valid", product: Product{ID: "p-1", PriceMinor: 1000}, errCount: 0},
		{name: "free product", product: Product{ID: "p-2", PriceMinor: 0}, errCount: 0},
		{name: "missing id", product: Product{PriceMinor: 1000}, errCount: 1},
		{name: "negative price", product: Product{ID: "p-3", PriceMinor: -1}, errCount: 1},
		{name: "all invalid", product: Product{PriceMinor: -1}, errCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.product.Validate()
			if len(errs) != tt.errCount {
				t.Fatalf("expected %d errors, got %d: %v", tt.errCount, len(errs), errs)
			}
		})
	}
}

func TestProductFilter_Matches(t *testing.T) {
	ring := Product{ID: "r-1", Category: "Rings", Material: "Gold"}

	tests := []struct {
		name   string
		filter ProductFilter
		want   bool
	}{
		{name: "empty filter", filter: ProductFilter{}, want: true},
		{name: "all values", filter: ProductFilter{Category: FilterAll, Material: FilterAll}, want: true},
		{name: "category match", filter: ProductFilter{Category: "Rings"}, want: true},
		{name: "category mismatch", filter: ProductFilter{Category: "Necklaces"}, want: false},
		{name: "material mismatch", filter: ProductFilter{Category: "Rings", Material: "Silver"}, want: false},
		{name: "both match", filter: ProductFilter{Category: "Rings", Material: "Gold"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(ring); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
