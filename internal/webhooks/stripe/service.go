package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/classickits/jerseystore-backend/internal/payments"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

type reconciler interface {
	Reconcile(ctx context.Context, input payments.ReconcileInput) (payments.ReconcileResult, error)
}

type ServiceParams struct {
	Payments reconciler
}

type Service struct {
	payments reconciler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	return &Service{payments: params.Payments}, nil
}

// HandleEvent routes payment intent outcomes to the reconciler. Other event
// types return an empty result.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (payments.ReconcileResult, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var outcome payments.Outcome
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		outcome = payments.OutcomeSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		outcome = payments.OutcomeFailed
	default:
		return "", nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	reason := ""
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Msg
	}
	details := types.NewStripeDetails(types.StripeDetails{
		PaymentIntentID: intent.ID,
		IntentStatus:    string(intent.Status),
		LastError:       reason,
	})
	return s.payments.Reconcile(ctx, payments.ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        orderIDFromMetadata(intent.Metadata),
		TransactionIDs: []string{intent.ID},
		Outcome:        outcome,
		Details:        &details,
		Reason:         reason,
		Source:         "stripe-webhook",
	})
}

// orderIDFromMetadata returns uuid.Nil when the metadata carries no usable
// order id; the reconciler then matches on the intent id alone.
func orderIDFromMetadata(metadata map[string]string) uuid.UUID {
	id, err := uuid.Parse(metadata[stripeclient.MetadataOrderID])
	if err != nil {
		return uuid.Nil
	}
	return id
}
