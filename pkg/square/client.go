// Package square wraps the Square SDK calls the storefront needs: card
// payments, status lookups, refunds and webhook signature checks.
package square

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/classickits/jerseystore-backend/pkg/config"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type Client struct {
	sdk             *sqclient.Client
	env             string
	locationID      string
	currency        string
	webhookSecret   string
	notificationURL string
	logg            *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := cfg.Environment()
	host, ok := hosts[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be sandbox or production, got %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("square webhook secret is required")
	}

	c := &Client{
		sdk:             sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token)),
		env:             env,
		locationID:      strings.TrimSpace(cfg.LocationID),
		currency:        strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		webhookSecret:   secret,
		notificationURL: strings.TrimSpace(cfg.NotificationURL),
		logg:            logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"square_env":  env,
		"location_id": c.locationID,
	}), "square client initialized")
	return c, nil
}

// CreatePayment charges params.SourceID. Location and currency fall back to
// the configured defaults.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	if params.Currency == "" {
		params.Currency = c.currency
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	req := params.request(idempotencyKey("payment", params.IdempotencyKey))

	return call(ctx, c, "create_payment", map[string]any{
		"reference_id": params.ReferenceID,
		"amount_cents": params.AmountCents,
	}, func() (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Create(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square payment id is required")
	}
	return call(ctx, c, "get_payment", map[string]any{"payment_id": paymentID}, func() (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*sq.PaymentRefund, error) {
	if params.Currency == "" {
		params.Currency = c.currency
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	req := params.request(idempotencyKey("refund", params.IdempotencyKey))

	return call(ctx, c, "refund_payment", map[string]any{
		"payment_id":   params.PaymentID,
		"amount_cents": params.AmountCents,
	}, func() (*sq.PaymentRefund, error) {
		resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.GetRefund(), nil
	})
}

// VerifyWebhookSignature checks the x-square-hmacsha256-signature header.
func (c *Client) VerifyWebhookSignature(signature string, body []byte) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.webhookSecret, c.notificationURL, signature, body)
}

// VerifySignature checks a Square webhook signature without a client. Square
// signs notificationURL+body; with no URL configured only the body is signed.
func VerifySignature(secret, notificationURL, signature string, body []byte) bool {
	if strings.TrimSpace(secret) == "" {
		return false
	}
	parts := [][]byte{body}
	if notificationURL != "" {
		parts = [][]byte{[]byte(notificationURL), body}
	}
	return security.VerifyHMACSHA256(signature, []byte(secret), parts...)
}

func idempotencyKey(kind, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	return "js-" + kind + "-" + uuid.NewString()
}

// call runs one SDK request with start and finish log lines and maps any
// failure onto a domain error.
func call[T any](ctx context.Context, c *Client, op string, fields map[string]any, fn func() (T, error)) (T, error) {
	ctx = c.logg.WithFields(ctx, redact(fields))
	ctx = c.logg.WithField(ctx, "square_op", op)
	started := time.Now()

	out, err := fn()
	ctx = c.logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		mapped := mapError(err, op)
		c.logg.Error(ctx, "square request failed", err)
		var zero T
		return zero, mapped
	}
	c.logg.Debug(ctx, "square request completed")
	return out, nil
}

var sensitiveKeys = []string{"card", "nonce", "token", "source", "cvv", "cvc", "secret", "email", "phone"}

func redact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
		lower := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
