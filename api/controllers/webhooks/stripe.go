package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/classickits/jerseystore-backend/internal/payments"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
)

const providerStripe = "stripe"

// StripeVerifier checks the Stripe-Signature header and decodes the event.
type StripeVerifier func(payload []byte, sigHeader string) (stripe.Event, error)

type StripeEventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (payments.ReconcileResult, error)
}

// StripeWebhook handles payment_intent events.
func StripeWebhook(svc StripeEventHandler, verify StripeVerifier, guard eventGuard, m *metrics.CommerceMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verify == nil || guard == nil {
			reject(ctx, w, logg, m, providerStripe, pkgerrors.New(pkgerrors.CodeDependency, "stripe webhooks not configured"))
			return
		}

		payload, err := readBody(w, r)
		if err != nil {
			reject(ctx, w, logg, m, providerStripe, err)
			return
		}
		event, err := verify(payload, r.Header.Get(stripeclient.SignatureHeader))
		if err != nil {
			reject(ctx, w, logg, m, providerStripe, err)
			return
		}

		dispatch(w, r, guard, m, logg, delivery{
			provider:  providerStripe,
			eventID:   event.ID,
			eventType: string(event.Type),
			handle: func(ctx context.Context) (payments.ReconcileResult, error) {
				return svc.HandleEvent(ctx, &event)
			},
		})
	}
}
