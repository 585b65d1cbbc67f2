package router

import (
	"net/http"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/handler"
	"cadak-tickets/internal/middleware"
	"cadak-tickets/internal/telemetry"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Events   *handler.EventHandler
	Checkout *handler.CheckoutHandler
	Payments *handler.PaymentHandler
	Tickets  *handler.TicketHandler
	Scanners *handler.ScannerHandler
	Sellers  *handler.SellerHandler
	Payouts  *handler.PayoutHandler
}

// Options configures the cross-cutting middleware.
type Options struct {
	APIKey         string
	RateLimit      config.RateLimitConfig
	MetricsEnabled bool
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.MetricsEnabled {
		mux.Handle("GET /metrics", telemetry.MetricsHandler())
	}

	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}

	// Payments
	route("POST /api/payments/webhook", h.Payments.Webhook)
	route("GET /api/payments/verify", h.Payments.Verify)
	route("GET /api/orders/{reference}", h.Payments.GetOrder)

	// Catalog and checkout
	route("GET /api/events", h.Events.List)
	route("GET /api/events/{id}", h.Events.GetByID)
	route("POST /api/checkout", h.Checkout.Checkout)

	// Tickets
	route("GET /api/tickets", h.Tickets.ListMine)
	route("GET /api/seller/tickets", h.Tickets.ListSold)
	route("GET /api/tickets/{id}", h.Tickets.GetByID)
	route("GET /api/tickets/{id}/qr.png", h.Tickets.QRCode)
	route("DELETE /api/tickets/{id}", h.Tickets.Delete)
	route("POST /api/scan", h.Tickets.Scan)

	// Scanner access
	route("GET /api/scanners", h.Scanners.List)
	route("POST /api/scanners", h.Scanners.Grant)
	route("DELETE /api/scanners/{memberId}", h.Scanners.Revoke)

	// Seller dashboard
	route("GET /api/seller/events", h.Sellers.ListEvents)
	route("POST /api/seller/events", h.Sellers.CreateEvent)
	route("PATCH /api/seller/events/{id}", h.Sellers.UpdateEvent)
	route("DELETE /api/seller/events/{id}", h.Sellers.DeleteEvent)
	route("GET /api/seller/orders", h.Sellers.ListOrders)
	route("GET /api/seller/payouts", h.Payouts.List)
	route("POST /api/seller/payouts", h.Payouts.Request)
	route("GET /api/seller/payouts/balance", h.Payouts.Balance)

	// Apply middleware in order: otelhttp -> Recovery -> Logging -> CORS -> RateLimit -> APIKeyAuth -> Identity
	var handler http.Handler = mux
	handler = middleware.Identity(handler)
	handler = middleware.APIKeyAuth(opts.APIKey, logger)(handler)
	handler = middleware.RateLimit(opts.RateLimit, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = telemetry.HTTPHandler(handler, "cadak-tickets")

	return handler
}
