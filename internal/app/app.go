// Package app assembles the commerce services shared by the api and
// cron-worker binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/classickits/jerseystore-backend/internal/address"
	"github.com/classickits/jerseystore-backend/internal/cart"
	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/internal/payments"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/square"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
)

// Providers holds a client for every payment provider that has
// credentials. A provider without credentials stays nil.
type Providers struct {
	Stripe *stripeclient.Client
	PayPal *paypal.Client
	Square *square.Client
}

// NewProviders builds the provider clients. A provider is skipped when its
// primary credential is empty; a partially configured provider is an error.
func NewProviders(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Providers, error) {
	var p Providers
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		client, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return p, fmt.Errorf("stripe client: %w", err)
		}
		p.Stripe = client
	}
	if strings.TrimSpace(cfg.PayPal.ClientID) != "" {
		client, err := paypal.NewClient(ctx, cfg.PayPal, logg)
		if err != nil {
			return p, fmt.Errorf("paypal client: %w", err)
		}
		p.PayPal = client
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return p, fmt.Errorf("square client: %w", err)
		}
		p.Square = client
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe": p.Stripe != nil,
			"paypal": p.PayPal != nil,
			"square": p.Square != nil,
		}), "payment providers resolved")
	}
	return p, nil
}

func (p Providers) stripeGateway() payments.StripeGateway {
	if p.Stripe == nil {
		return nil
	}
	return p.Stripe
}

func (p Providers) paypalGateway() payments.PayPalGateway {
	if p.PayPal == nil {
		return nil
	}
	return p.PayPal
}

func (p Providers) squareGateway() payments.SquareGateway {
	if p.Square == nil {
		return nil
	}
	return p.Square
}

// Commerce is the set of domain services behind the storefront.
type Commerce struct {
	Products   product.Service
	Cart       cart.Service
	Addresses  address.Service
	Orders     orders.Service
	Payments   payments.Service
	OutboxRepo *outbox.Repository
}

// NewCommerce wires the repositories and services over one database client.
func NewCommerce(dbClient *db.Client, providers Providers, m *metrics.CommerceMetrics, logg *logger.Logger) (*Commerce, error) {
	conn := dbClient.DB()

	productRepo := product.NewRepository(conn)
	productSvc, err := product.NewService(productRepo, dbClient)
	if err != nil {
		return nil, fmt.Errorf("product service: %w", err)
	}

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, dbClient, productRepo)
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	addressSvc, err := address.NewService(address.NewRepository(conn), dbClient)
	if err != nil {
		return nil, fmt.Errorf("address service: %w", err)
	}

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orderRepo,
		Products:  productRepo,
		Cart:      cartRepo,
		Addresses: addressSvc,
		Outbox:    emitter,
		Tx:        dbClient,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:    orderRepo,
		Orders:  orderSvc,
		Stripe:  providers.stripeGateway(),
		PayPal:  providers.paypalGateway(),
		Square:  providers.squareGateway(),
		Outbox:  emitter,
		Tx:      dbClient,
		Metrics: m,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}

	return &Commerce{
		Products:   productSvc,
		Cart:       cartSvc,
		Addresses:  addressSvc,
		Orders:     orderSvc,
		Payments:   paymentSvc,
		OutboxRepo: outboxRepo,
	}, nil
}
