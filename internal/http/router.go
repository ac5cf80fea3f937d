package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Carts    *CartHandler
	Products *ProductHandler
	Views    *ViewHandler
	// Realtime serves GET /ws.
	Realtime http.Handler
}

// NewRouter wires every endpoint. The websocket endpoint sits outside the
// timeout and compression middleware because its connection outlives the
// request.
func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", h.Realtime)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(MaxBodySize(cfg.MaxRequestBodySize))
		r.Use(middleware.Compress(5))

		r.Route("/api/carts", h.Carts.Routes)
		r.Route("/api/products", h.Products.Routes)
		h.Views.Routes(r)
	})

	return otelhttp.NewHandler(r, "cartsync")
}
