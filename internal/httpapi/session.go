package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName — имя cookie с идентификатором сессии корзины.
const DefaultCookieName = "storefront_session"

// CookieConfig задаёт параметры cookie сессии.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// DefaultCookieConfig возвращает cookie на 30 дней.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:   DefaultCookieName,
		MaxAge: 30 * 24 * time.Hour,
	}
}

// EndSession сбрасывает сессию запроса: корзина удаляется, cookie истекает.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.cookieSessionID(r); ok {
		if err := h.sessions.Reset(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cookieSessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// sessionID возвращает сессию из cookie или создаёт новую. Значение, не являющееся UUID, заменяется.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := h.cookieSessionID(r); ok {
		return id
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
