package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StreamCart обрабатывает GET /api/cart/events: поток снимков корзины в формате Server-Sent Events.
//
// Первым кадром идёт текущий снимок, далее по кадру на каждый переход. Медленный клиент
// получает только последний снимок: промежуточные отбрасываются. Подписка снимается при
// отключении клиента.
func (h *Handler) StreamCart(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	sessionID := h.sessionID(w, r)
	engine, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updates := make(chan domain.CartSnapshot, 1)
	unsubscribe := engine.Subscribe(func(snapshot domain.CartSnapshot) {
		// Уведомления движка сериализованы, поэтому писатель в канал один.
		select {
		case updates <- snapshot:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- snapshot
		}
	})
	defer unsubscribe()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := h.logger.WithField("session_id", sessionID)
	logger.Debug("cart stream opened")
	defer logger.Debug("cart stream closed")

	current := engine.Snapshot()
	if err := h.writeSnapshotEvent(w, current); err != nil {
		return
	}
	flusher.Flush()
	lastRevision := current.Revision

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot := <-updates:
			if snapshot.Revision <= lastRevision {
				continue
			}
			if err := h.writeSnapshotEvent(w, snapshot); err != nil {
				logger.WithError(err).Debug("cart stream write failed")
				return
			}
			flusher.Flush()
			lastRevision = snapshot.Revision
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

			// Выгруженная из реестра сессия получает новый движок; поток старого завершается,
			// клиент переподключится и подпишется заново.
			active, err := h.sessions.Get(r.Context(), sessionID)
			if err != nil || active != engine {
				logger.WithFields(log.Fields{"reason": "engine replaced"}).Debug("cart stream ended")
				return
			}
		}
	}
}

func (h *Handler) writeSnapshotEvent(w http.ResponseWriter, snapshot domain.CartSnapshot) error {
	data, err := json.Marshal(h.toCartResponse(snapshot))
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: cart\ndata: %s\n\n", snapshot.Revision, data)
	return err
}
