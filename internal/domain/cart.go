package domain

// CartLineItem — позиция корзины. Поля товара копируются в момент добавления
// и дальше не синхронизируются с каталогом.
type CartLineItem struct {
	ProductID  string
	Name       string
	PriceMinor int64
	Image      string
	Category   string
	Quantity   int
}

// NewLineItem снимает копию отображаемых полей товара с количеством 1.
func NewLineItem(p Product) CartLineItem {
	return CartLineItem{
		ProductID:  p.ID,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Image:      p.Image,
		Category:   p.Category,
		Quantity:   1,
	}
}

// TotalMinor возвращает стоимость позиции: цена * количество.
func (i CartLineItem) TotalMinor() int64 {
	return i.PriceMinor * int64(i.Quantity)
}

// CartSnapshot — неизменяемое представление корзины после завершённого перехода.
type CartSnapshot struct {
	Items           []CartLineItem
	TotalItems      int
	TotalPriceMinor int64
	DrawerOpen      bool
	// Revision увеличивается на единицу при каждом переходе состояния.
	Revision uint64
}

// NewCartSnapshot копирует позиции и вычисляет производные агрегаты.
func NewCartSnapshot(items []CartLineItem, drawerOpen bool, revision uint64) CartSnapshot {
	copied := make([]CartLineItem, len(items))
	copy(copied, items)

	snapshot := CartSnapshot{
		Items:      copied,
		DrawerOpen: drawerOpen,
		Revision:   revision,
	}
	for _, item := range copied {
		snapshot.TotalItems += item.Quantity
		snapshot.TotalPriceMinor += item.TotalMinor()
	}
	return snapshot
}

// Empty сообщает, что в корзине нет позиций.
func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}
