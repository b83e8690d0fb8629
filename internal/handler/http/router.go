package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/tgshop/internal/service"
	"github.com/utafrali/tgshop/pkg/health"
	"github.com/utafrali/tgshop/pkg/middleware"
)

// RouterConfig tunes the router.
type RouterConfig struct {
	CORS                   middleware.CORSConfig
	CheckoutRateLimitRPS   float64
	CheckoutRateLimitBurst int
}

// NewRouter creates a chi router with all shop routes registered.
func NewRouter(
	shopService *service.ShopService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("shop"))
	r.Use(middleware.Tracing("shop"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	h := NewShopHandler(shopService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Identity)
		r.Use(middleware.RequestLogger(logger))

		r.Get("/shipping-options", h.ShippingOptions)
		r.Post("/notifications/preview", h.PreviewNotification)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)

			r.Post("/items", h.AddItem)
			r.Put("/items/{id}", h.UpdateQuantity)
			r.Delete("/items/{id}", h.RemoveItem)

			r.Put("/shipping", h.SetShipping)
			r.Get("/payment-methods", h.PaymentMethods)
			r.Put("/payment-method", h.SetPaymentMethod)
		})

		r.With(middleware.RateLimit(cfg.CheckoutRateLimitRPS, cfg.CheckoutRateLimitBurst, UserKey, logger)).
			Post("/checkout", h.Checkout)
	})

	return r
}
