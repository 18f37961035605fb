package payments

import (
	"context"

	sq "github.com/square/square-go-sdk"
	"github.com/stripe/stripe-go/v84"

	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/square"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
)

// StripeGateway is the subset of pkg/stripe the payment flows call.
type StripeGateway interface {
	CreatePaymentIntent(ctx context.Context, in stripeclient.IntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	RefundPaymentIntent(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*stripe.Refund, error)
}

// PayPalGateway is the subset of pkg/paypal the payment flows call.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, params paypal.OrderParams) (*paypal.Order, error)
	GetOrder(ctx context.Context, paypalOrderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*paypal.Order, error)
	RefundCapture(ctx context.Context, captureID, amountValue, requestKey string) (*paypal.Refund, error)
}

// SquareGateway is the subset of pkg/square the payment flows call.
type SquareGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (*sq.PaymentRefund, error)
}

var (
	_ StripeGateway = (*stripeclient.Client)(nil)
	_ PayPalGateway = (*paypal.Client)(nil)
	_ SquareGateway = (*square.Client)(nil)
)

// Square and PayPal statuses the flows branch on.
const (
	squareCompleted = "COMPLETED"
	squareFailed    = "FAILED"
	squareCanceled  = "CANCELED"

	paypalCompleted = "COMPLETED"
	paypalVoided    = "VOIDED"
)

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
