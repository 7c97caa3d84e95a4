package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore хранит сериализованные корзины в таблице cart_snapshots с ключом по сессии.
type CartStore struct {
	db *sql.DB
}

// NewCartStore создаёт PostgreSQL-реализацию domain.CartStore.
func NewCartStore(store *Store) *CartStore {
	return &CartStore{db: store.DB()}
}

// Load возвращает сохранённую корзину или ErrCartSnapshotNotFound.
func (s *CartStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionIDRequired
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRowContext(queryCtx, `
		SELECT payload
		FROM cart_snapshots
		WHERE session_id = $1
	`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	return payload, nil
}

// Save выполняет upsert корзины сессии (last write wins).
func (s *CartStore) Save(ctx context.Context, sessionID string, payload []byte) error {
	if sessionID == "" {
		return domain.ErrSessionIDRequired
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(queryCtx, `
		INSERT INTO cart_snapshots (session_id, payload, schema_version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET payload = EXCLUDED.payload,
		    schema_version = EXCLUDED.schema_version,
		    updated_at = EXCLUDED.updated_at
	`, sessionID, payload, payloadSchemaVersion(payload))
	if err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

// Delete удаляет корзину сессии.
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, `DELETE FROM cart_snapshots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

// payloadSchemaVersion достаёт версию формата для отдельной колонки; у легаси-массива версия 0.
func payloadSchemaVersion(payload []byte) int {
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return 0
	}
	return header.Version
}

var _ domain.CartStore = (*CartStore)(nil)
