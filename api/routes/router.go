package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/craftcart-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/craftcart-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/craftcart-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/craftcart-backend/api/controllers/webhooks"
	"github.com/angelmondragon/craftcart-backend/api/middleware"
	"github.com/angelmondragon/craftcart-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/craftcart-backend/internal/checkout"
	"github.com/angelmondragon/craftcart-backend/internal/orders"
	"github.com/angelmondragon/craftcart-backend/internal/payments"
	"github.com/angelmondragon/craftcart-backend/internal/products"
	stripewebhook "github.com/angelmondragon/craftcart-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/craftcart-backend/pkg/config"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
	"github.com/angelmondragon/craftcart-backend/pkg/redis"
)

// Deps carries everything the router hands to controllers. Nil services make
// their routes answer 500 instead of panicking.
type Deps struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer
	Metrics  *metrics.PaymentMetrics

	Carts         cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Payments      payments.Service
	Products      products.Service
	StripeWebhook *stripewebhook.Service
	WebhookGuard  *stripewebhook.EventGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var idempotencyStore redis.IdempotencyStore
	checkoutLimit := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		policy := middleware.NewRateLimitPolicy("checkout", cfg.Checkout.RateWindow, cfg.Checkout.RateLimit)
		checkoutLimit = middleware.UserRateLimit(policy, deps.Redis, logg)
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productId}/payment-options", controllers.ProductPaymentOptions(deps.Products, logg))
		r.Post("/payments/webhook", stripeWebhookHandler(deps, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Carts, logg))
				r.Put("/items/{productId}", cartcontrollers.CartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(deps.Carts, logg))
				r.With(checkoutLimit, idempotent).Post("/checkout", cartcontrollers.CartCheckout(deps.Checkout, logg))
			})

			r.With(checkoutLimit, idempotent).Post("/payments/create-intent", controllers.PaymentsCreateIntent(deps.Payments, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleSeller, enums.RoleAdmin)).
					Put("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			})
		})
	})

	return r
}

// stripeWebhookHandler keeps nil pointers from reaching the controller as
// non-nil interfaces.
func stripeWebhookHandler(deps Deps, logg *logger.Logger) http.HandlerFunc {
	var svc webhookcontrollers.StripeWebhookService
	if deps.StripeWebhook != nil {
		svc = deps.StripeWebhook
	}
	if deps.WebhookGuard != nil {
		return webhookcontrollers.StripeWebhook(svc, deps.Payments, deps.WebhookGuard, deps.Metrics, logg)
	}
	return webhookcontrollers.StripeWebhook(svc, deps.Payments, nil, deps.Metrics, logg)
}
