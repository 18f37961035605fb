// Package stripe covers the three Stripe calls checkout needs (create, read
// and refund a payment intent) plus webhook event verification.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

// Allowed secret key prefixes per environment. Restricted keys (rk_) work
// as long as they carry payment intent and refund permissions.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

type Client struct {
	api           *stripe.Client
	env           string
	signingSecret string
	currency      string
	logg          *logger.Logger
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errors.New("stripe api key is required")
	case secret == "":
		return nil, errors.New("stripe webhook secret is required")
	}
	if err := checkKey(env, apiKey); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{
		api:           stripe.NewClient(apiKey),
		env:           env,
		signingSecret: secret,
		currency:      currency,
		logg:          logg,
	}, nil
}

// checkKey refuses to start a test deployment with a live key and the
// other way round.
func checkKey(env, key string) error {
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return fmt.Errorf("stripe environment must be test or live, got %q", env)
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
}
