package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRecord struct {
	payload   []byte
	updatedAt time.Time
}

// CartStore — in-memory реализация domain.CartStore для локальной разработки и тестов.
type CartStore struct {
	mu      sync.RWMutex
	records map[string]cartRecord
}

// NewCartStore создаёт пустое хранилище корзин.
func NewCartStore() *CartStore {
	return &CartStore{records: make(map[string]cartRecord)}
}

// Load возвращает копию сохранённой корзины или ErrCartSnapshotNotFound.
func (s *CartStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, domain.ErrSessionIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[sessionID]
	if !ok {
		return nil, domain.ErrCartSnapshotNotFound
	}
	return append([]byte(nil), record.payload...), nil
}

// Save перезаписывает корзину сессии. Сохраняем копию, чтобы избежать мутаций извне.
func (s *CartStore) Save(ctx context.Context, sessionID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return domain.ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sessionID] = cartRecord{
		payload:   append([]byte(nil), payload...),
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// Delete удаляет корзину сессии.
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	return nil
}

// Len возвращает количество сохранённых корзин.
func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ domain.CartStore = (*CartStore)(nil)
