package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/classickits/jerseystore-backend/api/routes"
	"github.com/classickits/jerseystore-backend/internal/app"
	"github.com/classickits/jerseystore-backend/internal/auth"
	"github.com/classickits/jerseystore-backend/internal/users"
	"github.com/classickits/jerseystore-backend/internal/webhooks"
	paypalwebhook "github.com/classickits/jerseystore-backend/internal/webhooks/paypal"
	squarewebhook "github.com/classickits/jerseystore-backend/internal/webhooks/square"
	stripewebhook "github.com/classickits/jerseystore-backend/internal/webhooks/stripe"
	"github.com/classickits/jerseystore-backend/pkg/auth/onetime"
	"github.com/classickits/jerseystore-backend/pkg/auth/session"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/migrate"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/redis"
	"github.com/classickits/jerseystore-backend/pkg/square"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	tokens, err := onetime.NewTokens(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create token store", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Tokens:         tokens,
		AppConfig:      cfg.App,
		AccountsConfig: cfg.Accounts,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:           userRepo,
		Tx:             dbClient,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create user service", err)
		os.Exit(1)
	}

	commerceMetrics := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)

	providers, err := app.NewProviders(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to configure payment providers", err)
		os.Exit(1)
	}

	commerce, err := app.NewCommerce(dbClient, providers, commerceMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to build commerce services", err)
		os.Exit(1)
	}

	hooks, err := buildWebhooks(cfg, redisClient, providers, commerce)
	if err != nil {
		logg.Error(ctx, "failed to build webhook handlers", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Sessions:       sessionManager,
			Auth:           authService,
			Users:          userService,
			Products:       commerce.Products,
			Cart:           commerce.Cart,
			Addresses:      commerce.Addresses,
			Orders:         commerce.Orders,
			Payments:       commerce.Payments,
			Webhooks:       hooks,
			Metrics:        commerceMetrics,
			MetricsHandler: promhttp.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

// buildWebhooks wires a handler per provider. Signature checks use the
// provider client when one exists and fall back to the configured secrets so
// webhooks keep verifying while outbound calls are disabled.
func buildWebhooks(cfg *config.Config, redisClient *redis.Client, providers app.Providers, commerce *app.Commerce) (routes.Webhooks, error) {
	guard, err := webhooks.NewGuard(redisClient, cfg.Webhooks.DedupeTTL)
	if err != nil {
		return routes.Webhooks{}, err
	}
	hooks := routes.Webhooks{Guard: guard}

	if providers.Stripe != nil || cfg.Stripe.Secret != "" {
		svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: commerce.Payments})
		if err != nil {
			return hooks, err
		}
		hooks.Stripe = svc
		if providers.Stripe != nil {
			hooks.StripeVerify = providers.Stripe.ConstructEvent
		} else {
			secret := cfg.Stripe.Secret
			hooks.StripeVerify = func(payload []byte, sigHeader string) (stripe.Event, error) {
				return stripeclient.ConstructEvent(payload, sigHeader, secret)
			}
		}
	}

	if providers.PayPal != nil || cfg.PayPal.WebhookID != "" {
		svc, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{Payments: commerce.Payments})
		if err != nil {
			return hooks, err
		}
		hooks.PayPal = svc
		if providers.PayPal != nil {
			hooks.PayPalVerify = providers.PayPal.VerifyWebhook
		} else {
			webhookID := cfg.PayPal.WebhookID
			hooks.PayPalVerify = func(headers paypal.TransmissionHeaders, body []byte) error {
				return paypal.VerifyWebhook(webhookID, headers, body)
			}
		}
	}

	if providers.Square != nil || cfg.Square.WebhookSecret != "" {
		svc, err := squarewebhook.NewService(squarewebhook.ServiceParams{Payments: commerce.Payments})
		if err != nil {
			return hooks, err
		}
		hooks.Square = svc
		if providers.Square != nil {
			hooks.SquareVerify = providers.Square.VerifyWebhookSignature
		} else {
			secret, url := cfg.Square.WebhookSecret, cfg.Square.NotificationURL
			hooks.SquareVerify = func(signature string, body []byte) bool {
				return square.VerifySignature(secret, url, signature, body)
			}
		}
	}

	return hooks, nil
}
