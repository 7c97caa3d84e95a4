package domain

// FilterAll — значение фильтра, означающее «без ограничения».
const FilterAll = "All"

// Product описывает товар каталога. Каталог владеет записью, корзина её только читает.
type Product struct {
	ID          string
	Name        string
	Category    string
	Material    string
	Description string
	// PriceMinor — цена за единицу в минимальных денежных единицах (например, пайсы).
	PriceMinor int64
	// Image — URI изображения товара.
	Image string
}

// Validate проверяет инварианты товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceNegative)
	}

	return errs
}

// ProductFilter ограничивает выдачу каталога по категории и материалу.
// Пустое значение или FilterAll означает отсутствие ограничения.
type ProductFilter struct {
	Category string
	Material string
}

// Matches сообщает, проходит ли товар фильтр.
func (f ProductFilter) Matches(p Product) bool {
	if !matchesValue(f.Category, p.Category) {
		return false
	}
	return matchesValue(f.Material, p.Material)
}

func matchesValue(want, got string) bool {
	if want == "" || want == FilterAll {
		return true
	}
	return want == got
}
