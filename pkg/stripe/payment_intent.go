package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

// Metadata keys set on every intent and read back from webhook events.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

type IntentParams struct {
	AmountCents    int64
	Currency       string
	OrderID        string
	UserID         string
	Description    string
	IdempotencyKey string
}

// CreatePaymentIntent opens an intent for a local order. Automatic payment
// methods are on and redirect-based methods are off, so the storefront can
// confirm with Stripe Elements alone.
func (c *Client) CreatePaymentIntent(ctx context.Context, in IntentParams) (*stripe.PaymentIntent, error) {
	if in.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe amount must be positive")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = c.currency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	params.AddMetadata(MetadataOrderID, in.OrderID)
	if in.UserID != "" {
		params.AddMetadata(MetadataUserID, in.UserID)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := c.api.V1PaymentIntents.Create(ctx, params)
	return pi, c.fail(ctx, "create payment intent", err)
}

func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	pi, err := c.api.V1PaymentIntents.Retrieve(ctx, intentID, nil)
	return pi, c.fail(ctx, "get payment intent", err)
}

// RefundPaymentIntent refunds amountCents of the intent's charge. Zero
// refunds whatever is left.
func (c *Client) RefundPaymentIntent(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*stripe.Refund, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	params := &stripe.RefundCreateParams{PaymentIntent: stripe.String(intentID)}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := c.api.V1Refunds.Create(ctx, params)
	return r, c.fail(ctx, "refund payment intent", err)
}

// fail logs and maps err; it returns nil when err is nil.
func (c *Client) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if c.logg != nil {
		c.logg.Error(c.logg.WithField(ctx, "stripe_op", op), "stripe request failed", err)
	}
	return mapStripeError(err, op)
}

func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "stripe " + op + " failed"
	var se *stripe.Error
	if !errors.As(err, &se) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := pkgerrors.CodeDependency
	switch {
	case se.Code == stripe.ErrorCodeIdempotencyKeyInUse:
		code = pkgerrors.CodeIdempotency
	case se.HTTPStatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case se.Type == stripe.ErrorTypeCard, se.HTTPStatusCode == http.StatusBadRequest:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, err, msg)
}
