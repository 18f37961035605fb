package webhooks

import (
	"context"
	"net/http"

	"github.com/classickits/jerseystore-backend/internal/payments"
	paypalwebhook "github.com/classickits/jerseystore-backend/internal/webhooks/paypal"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
)

const providerPayPal = "paypal"

type PayPalVerifier func(headers paypal.TransmissionHeaders, body []byte) error

type PayPalEventHandler interface {
	HandleEvent(ctx context.Context, event *paypalwebhook.Event) (payments.ReconcileResult, error)
}

// PayPalWebhook handles PAYMENT.CAPTURE.* events.
func PayPalWebhook(svc PayPalEventHandler, verify PayPalVerifier, guard eventGuard, m *metrics.CommerceMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verify == nil || guard == nil {
			reject(ctx, w, logg, m, providerPayPal, pkgerrors.New(pkgerrors.CodeDependency, "paypal webhooks not configured"))
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			reject(ctx, w, logg, m, providerPayPal, err)
			return
		}
		if err := verify(paypal.HeadersFrom(r.Header), body); err != nil {
			reject(ctx, w, logg, m, providerPayPal, err)
			return
		}
		event, err := paypalwebhook.ParseEvent(body)
		if err != nil {
			reject(ctx, w, logg, m, providerPayPal, err)
			return
		}

		dispatch(w, r, guard, m, logg, delivery{
			provider:  providerPayPal,
			eventID:   event.ID,
			eventType: event.EventType,
			handle: func(ctx context.Context) (payments.ReconcileResult, error) {
				return svc.HandleEvent(ctx, event)
			},
		})
	}
}
