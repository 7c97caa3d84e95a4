package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SnapshotSchemaVersion — текущая версия сохраняемого формата корзины.
// Версия 0 означает исходный формат без обёртки (голый JSON-массив позиций).
const SnapshotSchemaVersion = 1

type persistedLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
}

type persistedCart struct {
	Version int             `json:"version"`
	Items   []persistedLine `json:"items"`
}

// EncodeSnapshot сериализует позиции корзины в текущую версию формата.
func EncodeSnapshot(items []domain.CartLineItem) ([]byte, error) {
	doc := persistedCart{
		Version: SnapshotSchemaVersion,
		Items:   make([]persistedLine, 0, len(items)),
	}
	for _, item := range items {
		doc.Items = append(doc.Items, persistedLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.PriceMinor,
			Image:     item.Image,
			Category:  item.Category,
			Quantity:  item.Quantity,
		})
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return payload, nil
}

// decodeSnapshot читает версии 0 и 1 и нормализует позиции:
// количество < 1, отрицательная цена и пустой productId отбрасываются,
// дубликаты склеиваются с суммированием количества.
func decodeSnapshot(payload []byte) ([]domain.CartLineItem, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrCartSnapshotCorrupt)
	}

	var lines []persistedLine
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCartSnapshotCorrupt, err)
		}
	} else {
		var doc persistedCart
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCartSnapshotCorrupt, err)
		}
		if doc.Version != SnapshotSchemaVersion {
			return nil, fmt.Errorf("%w: %d", domain.ErrCartSnapshotVersion, doc.Version)
		}
		lines = doc.Items
	}

	items := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 || line.Price < 0 {
			continue
		}
		if idx := indexOf(items, line.ProductID); idx >= 0 {
			items[idx].Quantity += line.Quantity
			continue
		}
		items = append(items, domain.CartLineItem{
			ProductID:  line.ProductID,
			Name:       line.Name,
			PriceMinor: line.Price,
			Image:      line.Image,
			Category:   line.Category,
			Quantity:   line.Quantity,
		})
	}
	return items, nil
}
