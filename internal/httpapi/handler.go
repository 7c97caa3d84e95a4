// Package httpapi реализует HTTP API витрины: каталог, команды корзины и поток её изменений.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/money"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const (
	defaultHeartbeat = 15 * time.Second
	// maxRequestBody ограничивает тело команд корзины.
	maxRequestBody = 1 << 16
)

// Sessions отдаёт движок корзины по идентификатору сессии.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Engine, error)
	Reset(ctx context.Context, sessionID string) error
}

// Options задаёт зависимости HTTP API.
type Options struct {
	Checkout  domain.CheckoutService
	Logger    *log.Entry
	Cookie    CookieConfig
	Heartbeat time.Duration
}

// Option настраивает Handler.
type Option func(*Options)

// WithCheckout задаёт сервис оформления заказа.
func WithCheckout(svc domain.CheckoutService) Option {
	return func(opts *Options) {
		opts.Checkout = svc
	}
}

// WithLogger задаёт logger обработчиков.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithCookie задаёт параметры cookie сессии.
func WithCookie(cfg CookieConfig) Option {
	return func(opts *Options) {
		opts.Cookie = cfg
	}
}

// WithHeartbeat задаёт интервал keep-alive комментариев в потоке событий.
func WithHeartbeat(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Heartbeat = interval
	}
}

// Handler обслуживает HTTP API витрины.
type Handler struct {
	catalog   domain.CatalogProvider
	sessions  Sessions
	checkout  domain.CheckoutService
	formatter *money.Formatter
	logger    *log.Entry
	cookie    CookieConfig
	heartbeat time.Duration
}

// NewHandler создаёт обработчики API.
func NewHandler(catalog domain.CatalogProvider, sessions Sessions, formatter *money.Formatter, options ...Option) *Handler {
	opts := Options{
		Cookie:    DefaultCookieConfig(),
		Heartbeat: defaultHeartbeat,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = DefaultCookieName
	}
	if opts.Checkout == nil {
		opts.Checkout = checkout.Unavailable{}
	}

	return &Handler{
		catalog:   catalog,
		sessions:  sessions,
		checkout:  opts.Checkout,
		formatter: formatter,
		logger:    logger,
		cookie:    opts.Cookie,
		heartbeat: opts.Heartbeat,
	}
}

// RegisterRoutes регистрирует маршруты API на роутере.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	// Каталог
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)

	// Корзина
	api.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.AddItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productId}", h.UpdateQuantity).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{productId}", h.RemoveItem).Methods(http.MethodDelete)
	api.HandleFunc("/cart/drawer", h.SetDrawer).Methods(http.MethodPut)
	api.HandleFunc("/cart/events", h.StreamCart).Methods(http.MethodGet)
	api.HandleFunc("/cart/checkout", h.Checkout).Methods(http.MethodPost)

	// Сессия
	api.HandleFunc("/session", h.EndSession).Methods(http.MethodDelete)
}

// Router возвращает роутер с маршрутами API и журналированием запросов.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)
	h.RegisterRoutes(r)
	return r
}

// engineFor находит движок корзины сессии запроса, выдавая cookie новой сессии при необходимости.
func (h *Handler) engineFor(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	sessionID := h.sessionID(w, r)
	engine, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return engine, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeError сопоставляет доменные ошибки HTTP-статусам.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCartEmpty):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCheckoutUnavailable):
		writeErr(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, session.ErrRegistryClosed):
		writeErr(w, http.StatusServiceUnavailable, "service is shutting down")
	default:
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
