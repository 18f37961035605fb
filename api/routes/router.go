package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classickits/jerseystore-backend/api/controllers"
	webhookcontrollers "github.com/classickits/jerseystore-backend/api/controllers/webhooks"
	"github.com/classickits/jerseystore-backend/api/middleware"
	"github.com/classickits/jerseystore-backend/internal/address"
	"github.com/classickits/jerseystore-backend/internal/auth"
	"github.com/classickits/jerseystore-backend/internal/cart"
	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/internal/payments"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/internal/users"
	"github.com/classickits/jerseystore-backend/pkg/auth/session"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
)

// Store is the redis surface used by the HTTP layer.
type Store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type eventGuard interface {
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	Release(ctx context.Context, provider, eventID string) error
}

// Webhooks groups the provider webhook handlers with their verifiers.
// A provider whose handler is nil answers with a dependency error.
type Webhooks struct {
	Guard        eventGuard
	Stripe       webhookcontrollers.StripeEventHandler
	StripeVerify webhookcontrollers.StripeVerifier
	PayPal       webhookcontrollers.PayPalEventHandler
	PayPalVerify webhookcontrollers.PayPalVerifier
	Square       webhookcontrollers.SquareEventHandler
	SquareVerify webhookcontrollers.SquareVerifier
}

type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     Store
	Sessions  session.AccessSessionChecker
	Auth      auth.Service
	Users     users.Service
	Products  product.Service
	Cart      cart.Service
	Addresses address.Service
	Orders    orders.Service
	Payments  payments.Service
	Webhooks  Webhooks
	Metrics   *metrics.CommerceMetrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.PublicBaseURL),
	)

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(deps, logg))
	})
	if p.MetricsHandler != nil {
		r.Handle("/metrics", p.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Webhooks are signature-checked and deduped, not IP limited.
		wh := p.Webhooks
		r.Post("/payment/stripe/webhook", webhookcontrollers.StripeWebhook(wh.Stripe, wh.StripeVerify, wh.Guard, p.Metrics, logg))
		r.Post("/payment/paypal/webhook", webhookcontrollers.PayPalWebhook(wh.PayPal, wh.PayPalVerify, wh.Guard, p.Metrics, logg))
		r.Post("/payment/square/webhook", webhookcontrollers.SquareWebhook(wh.Square, wh.SquareVerify, wh.Guard, p.Metrics, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(p.Redis, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests, logg))

			r.Route("/auth", func(r chi.Router) {
				r.With(
					middleware.AuthRateLimit(middleware.AuthPolicy{
						Name:       "register",
						Window:     cfg.RateLimit.RegisterWindow,
						IPLimit:    cfg.RateLimit.RegisterIPLimit,
						EmailLimit: cfg.RateLimit.RegisterEmailLimit,
					}, p.Redis, logg),
					middleware.Idempotency(p.Redis, logg),
				).Post("/register", controllers.AuthRegister(p.Auth, logg))
				r.With(
					middleware.AuthRateLimit(middleware.AuthPolicy{
						Name:       "login",
						Window:     cfg.RateLimit.LoginWindow,
						IPLimit:    cfg.RateLimit.LoginIPLimit,
						EmailLimit: cfg.RateLimit.LoginEmailLimit,
					}, p.Redis, logg),
				).Post("/login", controllers.AuthLogin(p.Auth, logg))
				r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
				r.Post("/logout", controllers.AuthLogout(p.Auth, logg))

				r.With(
					middleware.AuthRateLimit(middleware.AuthPolicy{
						Name:       "password_reset",
						Window:     cfg.RateLimit.LoginWindow,
						IPLimit:    cfg.RateLimit.LoginIPLimit,
						EmailLimit: cfg.RateLimit.LoginEmailLimit,
					}, p.Redis, logg),
				).Post("/forgot-password", controllers.AuthForgotPassword(p.Auth, logg))
				r.Get("/reset-password", controllers.AuthCheckResetToken(p.Auth, logg))
				r.Post("/reset-password", controllers.AuthResetPassword(p.Auth, logg))
				r.Get("/verify-email", controllers.AuthVerifyEmailLink(p.Auth, cfg.App.PublicBaseURL, logg))
				r.Post("/verify-email", controllers.AuthVerifyEmail(p.Auth, logg))
			})

			r.Get("/products", controllers.ListProducts(p.Products, logg))
			r.Get("/products/featured", controllers.ListFeaturedProducts(p.Products, logg))
			r.Get("/products/{id}", controllers.GetProduct(p.Products, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
				r.Use(middleware.Idempotency(p.Redis, logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.GetCart(p.Cart, logg))
					r.Post("/", controllers.AddCartItem(p.Cart, logg))
					r.Delete("/", controllers.ClearCart(p.Cart, logg))
					r.Put("/{productId}", controllers.UpdateCartItem(p.Cart, logg))
					r.Delete("/{productId}", controllers.RemoveCartItem(p.Cart, logg))
				})

				r.Route("/addresses", func(r chi.Router) {
					r.Get("/", controllers.ListAddresses(p.Addresses, logg))
					r.Post("/", controllers.CreateAddress(p.Addresses, logg))
					r.Delete("/{id}", controllers.DeleteAddress(p.Addresses, logg))
				})

				r.Post("/orders", controllers.CreateOrder(p.Orders, logg))
				r.Get("/orders", controllers.ListOrders(p.Orders, logg))
				r.Get("/orders/{id}", controllers.GetOrder(p.Orders, logg))

				r.Post("/payment/checkout", controllers.Checkout(p.Payments, logg))
				r.Post("/payment/stripe/intent", controllers.CreateStripeIntent(p.Payments, logg))
				r.Post("/payment/paypal/create", controllers.CreatePayPalOrder(p.Payments, logg))
				r.Post("/payment/paypal/capture", controllers.CapturePayPal(p.Payments, logg))
				r.Post("/payment/square/create", controllers.CreateSquarePayment(p.Payments, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

					r.Post("/products", controllers.AdminCreateProduct(p.Products, logg))
					r.Put("/products/{id}", controllers.AdminUpdateProduct(p.Products, logg))
					r.Delete("/products/{id}", controllers.AdminDeleteProduct(p.Products, logg))
					r.Put("/products/{id}/inventory", controllers.AdminSetInventory(p.Products, logg))
					r.Put("/orders/{id}", controllers.AdminUpdateOrderStatus(p.Orders, logg))
					r.Post("/payment/refund", controllers.AdminRefundPayment(p.Payments, logg))

					r.Route("/admin/users", func(r chi.Router) {
						r.Get("/", controllers.AdminListUsers(p.Users, logg))
						r.Get("/{id}", controllers.AdminGetUser(p.Users, logg))
						r.Put("/{id}", controllers.AdminUpdateUser(p.Users, logg))
						r.Delete("/{id}", controllers.AdminDeleteUser(p.Users, logg))
					})
				})
			})
		})
	})

	return r
}
