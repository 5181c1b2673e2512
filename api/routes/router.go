package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabunku/storefront-backend/api/controllers"
	"github.com/sabunku/storefront-backend/api/middleware"
	"github.com/sabunku/storefront-backend/internal/auth"
	checkoutsvc "github.com/sabunku/storefront-backend/internal/checkout"
	"github.com/sabunku/storefront-backend/internal/orders"
	products "github.com/sabunku/storefront-backend/internal/products"
	"github.com/sabunku/storefront-backend/internal/reviews"
	"github.com/sabunku/storefront-backend/pkg/auth/session"
	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/redis"
)

// Dependencies are the services and clients the router mounts. A nil Redis
// client disables rate limiting and idempotency replay.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *redis.Client
	Sessions       session.AccessSessionChecker
	Auth           auth.Service
	Products       products.Service
	Reviews        reviews.Service
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		deps.HTTPMetrics.Middleware,
	)

	passthrough := func(next http.Handler) http.Handler { return next }
	loginLimit, checkoutLimit, idempotency := passthrough, passthrough, passthrough
	if deps.Redis != nil {
		loginLimit = middleware.RateLimit(middleware.NewRateLimitPolicy(
			"login",
			cfg.AuthRateLimit.LoginWindow,
			cfg.AuthRateLimit.LoginIPLimit,
			cfg.AuthRateLimit.LoginEmailLimit,
		), deps.Redis, logg)
		checkoutLimit = middleware.RateLimit(middleware.NewRateLimitPolicy(
			"checkout",
			cfg.Checkout.RateLimitWindow,
			cfg.Checkout.RateLimitPerIP,
			0,
		), deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyTTL, logg)
	}

	var redisPinger controllers.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    redisPinger,
		}, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	requireAdmin := []func(http.Handler) http.Handler{
		middleware.Auth(cfg.JWT, deps.Sessions, logg),
		middleware.RequireAdmin(logg),
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{id}", controllers.GetProduct(deps.Products, logg))
		r.Get("/products/{id}/reviews", controllers.ListReviews(deps.Reviews, logg))
		r.Post("/products/{id}/reviews", controllers.CreateReview(deps.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(checkoutLimit, idempotency)
			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			r.Post("/checkout/whatsapp", controllers.CheckoutWhatsApp(deps.Checkout, cfg.Store.WhatsAppNumber, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AdminLogin(deps.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin...)
				r.Use(idempotency)
				r.Post("/logout", controllers.AdminLogout(deps.Auth, logg))

				r.Get("/orders", controllers.AdminListOrders(deps.Orders, logg))
				r.Get("/orders/{id}", controllers.AdminGetOrder(deps.Orders, logg))
				r.Patch("/orders/{id}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
				r.Post("/orders/{id}/cancel", controllers.AdminCancelOrder(deps.Orders, logg))
				r.Delete("/orders/{id}", controllers.AdminDeleteOrder(deps.Orders, logg))

				r.Get("/products", controllers.ListProducts(deps.Products, logg))
				r.Post("/products", controllers.AdminCreateProduct(deps.Products, logg))
				r.Put("/products/{id}", controllers.AdminUpdateProduct(deps.Products, logg))
				r.Delete("/products/{id}", controllers.AdminDeleteProduct(deps.Products, logg))
			})
		})
	})

	// paths kept for storefront and dashboard builds that predate /api/v1
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(checkoutLimit, idempotency)
			r.Post("/save-order", controllers.LegacySaveOrder(deps.Checkout, logg))
			r.Post("/decrement-stock", controllers.LegacyDecrementStock(deps.Checkout, logg))
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin...)
			r.Use(idempotency)
			r.Post("/cancel-order", controllers.LegacyCancelOrder(deps.Orders, logg))
			r.Post("/delete-order", controllers.LegacyDeleteOrder(deps.Orders, logg))
		})
	})

	return r
}
