package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/classickits/jerseystore-backend/api/responses"
	"github.com/classickits/jerseystore-backend/internal/payments"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type eventGuard interface {
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	Release(ctx context.Context, provider, eventID string) error
}

// delivery is one verified, parsed provider event.
type delivery struct {
	provider  string
	eventID   string
	eventType string
	handle    func(ctx context.Context) (payments.ReconcileResult, error)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body")
	}
	return body, nil
}

func reject(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, m *metrics.CommerceMetrics, provider string, err error) {
	m.WebhookEvent(provider, "unknown", metrics.WebhookRejected)
	responses.WriteError(ctx, logg, w, err)
}

// dispatch claims the event id, runs the handler and acknowledges. A failed
// handler releases the claim so the provider's retry is processed.
func dispatch(w http.ResponseWriter, r *http.Request, guard eventGuard, m *metrics.CommerceMetrics, logg *logger.Logger, d delivery) {
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"provider":   d.provider,
			"event_id":   d.eventID,
			"event_type": d.eventType,
		})
	}

	first, err := guard.Claim(ctx, d.provider, d.eventID)
	if err != nil {
		m.WebhookEvent(d.provider, d.eventType, metrics.WebhookFailed)
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event"))
		return
	}
	if !first {
		m.WebhookEvent(d.provider, d.eventType, metrics.WebhookDuplicate)
		if logg != nil {
			logg.Info(ctx, "webhook event already processed")
		}
		acknowledge(w)
		return
	}

	result, err := d.handle(ctx)
	if err != nil {
		if rerr := guard.Release(ctx, d.provider, d.eventID); rerr != nil && logg != nil {
			logg.Error(ctx, "release webhook claim", rerr)
		}
		m.WebhookEvent(d.provider, d.eventType, metrics.WebhookFailed)
		responses.WriteError(ctx, logg, w, err)
		return
	}

	outcome := metrics.WebhookProcessed
	if result == "" || result == payments.ResultUnmatched {
		outcome = metrics.WebhookIgnored
	}
	m.WebhookEvent(d.provider, d.eventType, outcome)
	if logg != nil {
		logg.Info(logg.WithField(ctx, "result", string(result)), "webhook event handled")
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	responses.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
