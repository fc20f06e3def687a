package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/zaver-checkout/internal/auth"
	"github.com/utafrali/zaver-checkout/internal/service"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	"github.com/utafrali/zaver-checkout/pkg/health"
	"github.com/utafrali/zaver-checkout/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "zaver-checkout"

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	Orders   *service.OrderService
	Payments *service.PaymentService
	Refunds  *service.RefundService
	Provider zaver.Provider
	Health   *health.Handler
	// Validate checks staff bearer tokens.
	Validate middleware.TokenValidator
	// RedirectLimiter throttles the order-received page. Optional.
	RedirectLimiter *middleware.RateLimiter
	Logger          *slog.Logger
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	webhooks := NewWebhookHandler(cfg.Provider, cfg.Payments, cfg.Refunds, logger)
	orders := NewOrderHandler(cfg.Orders, cfg.Payments, cfg.Refunds, logger)

	// Provider callbacks
	r.Post("/wc-api/zaver_payment_callback", webhooks.PaymentCallback)
	r.Post("/wc-api/zaver_refund_callback", webhooks.RefundCallback)

	// Shopper redirect
	r.Group(func(r chi.Router) {
		if cfg.RedirectLimiter != nil {
			r.Use(cfg.RedirectLimiter.Handler)
		}
		r.Get("/checkout/order-received/{id}", orders.OrderReceived)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orders.CreateOrder)
		r.Get("/{id}", orders.GetOrder)
		r.Post("/{id}/payment", orders.CreatePayment)

		// Staff endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Validate))
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Post("/{id}/refunds", orders.CreateRefund)
			r.Post("/{id}/sync", orders.SyncOrder)
			r.Post("/{id}/cancel-payment", orders.CancelPayment)
			r.Get("/{id}/notes", orders.ListNotes)
		})
	})

	return r
}
