package webhooks

import (
	"context"
	"net/http"

	"github.com/classickits/jerseystore-backend/internal/payments"
	squarewebhook "github.com/classickits/jerseystore-backend/internal/webhooks/square"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
)

const (
	providerSquare        = "square"
	SquareSignatureHeader = "X-Square-Hmacsha256-Signature"
)

type SquareVerifier func(signature string, body []byte) bool

type SquareEventHandler interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) (payments.ReconcileResult, error)
}

// SquareWebhook handles payment.created and payment.updated events.
func SquareWebhook(svc SquareEventHandler, verify SquareVerifier, guard eventGuard, m *metrics.CommerceMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verify == nil || guard == nil {
			reject(ctx, w, logg, m, providerSquare, pkgerrors.New(pkgerrors.CodeDependency, "square webhooks not configured"))
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			reject(ctx, w, logg, m, providerSquare, err)
			return
		}
		signature := r.Header.Get(SquareSignatureHeader)
		if signature == "" || !verify(signature, body) {
			reject(ctx, w, logg, m, providerSquare, pkgerrors.New(pkgerrors.CodeSignature, "invalid square signature"))
			return
		}
		event, err := squarewebhook.ParseEvent(body)
		if err != nil {
			reject(ctx, w, logg, m, providerSquare, err)
			return
		}

		dispatch(w, r, guard, m, logg, delivery{
			provider:  providerSquare,
			eventID:   event.EventID,
			eventType: event.Type,
			handle: func(ctx context.Context) (payments.ReconcileResult, error) {
				return svc.HandleEvent(ctx, event)
			},
		})
	}
}
