package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/outbox/payloads"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// OrderReferencePrefix prefixes the local order id in provider reference
// fields (PayPal invoice_id, Square reference_id).
const OrderReferencePrefix = "ORDER-"

// OrderReference encodes an order id for provider reference fields.
func OrderReference(orderID uuid.UUID) string {
	return OrderReferencePrefix + orderID.String()
}

// ParseOrderReference accepts either a bare order id or an ORDER- reference.
func ParseOrderReference(raw string) (uuid.UUID, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), OrderReferencePrefix)
	if trimmed == "" {
		return uuid.Nil, fmt.Errorf("order reference is empty")
	}
	return uuid.Parse(trimmed)
}

type settlement struct {
	result     ReconcileResult
	orderFrom  enums.OrderStatus
	orderMoved bool
}

// Reconcile applies a provider outcome to the matching attempt. Replays are
// no-ops, a failure never downgrades a completed payment, and events that
// match nothing are reported as unmatched rather than as errors.
func (s *service) Reconcile(ctx context.Context, input ReconcileInput) (ReconcileResult, error) {
	if !input.Provider.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}
	if input.Outcome != OutcomeSucceeded && input.Outcome != OutcomeFailed {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment outcome")
	}
	candidates := nonEmpty(input.TransactionIDs)
	if len(candidates) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"provider":        input.Provider,
		"transaction_ids": candidates,
		"outcome":         input.Outcome,
	})
	if input.OrderID != uuid.Nil {
		logCtx = s.logg.WithOrderID(logCtx, input.OrderID.String())
	}

	payment, err := s.matchPayment(ctx, input.Provider, input.OrderID, candidates)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "match payment")
	}
	if payment == nil {
		s.logg.Warn(logCtx, "no local payment matches provider event")
		return ResultUnmatched, nil
	}

	source := input.Source
	if source == "" {
		source = string(input.Provider)
	}
	var settled settlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment")
		}
		settled, err = s.settle(ctx, tx, current, input.Outcome, input.Details, input.Reason, outbox.SystemActor(source))
		return err
	})
	if err != nil {
		return "", err
	}
	s.afterSettle(ctx, payment, settled)
	return settled.result, nil
}

// matchPayment finds the attempt whose stored transaction id is one of the
// candidates, scoped to the order when its id is known.
func (s *service) matchPayment(ctx context.Context, provider enums.PaymentMethod, orderID uuid.UUID, candidates []string) (*models.Payment, error) {
	if orderID != uuid.Nil {
		rows, err := s.repo.ListPayments(ctx, orderID)
		if err != nil {
			return nil, err
		}
		for _, candidate := range candidates {
			for i := range rows {
				row := rows[i]
				if row.PaymentMethod == provider && row.HasTransaction() && *row.TransactionID == candidate {
					return &rows[i], nil
				}
			}
		}
		return nil, nil
	}
	for _, candidate := range candidates {
		payment, err := s.repo.FindPaymentByTransaction(ctx, provider, candidate)
		if err == nil {
			return payment, nil
		}
		if !db.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// settle moves payment to the outcome inside tx. Success also advances a
// pending order to processing and queues order.paid; failure queues
// payment.failed and leaves the order pending for another attempt.
func (s *service) settle(ctx context.Context, tx *gorm.DB, payment *models.Payment, outcome Outcome, details *types.PaymentDetails, reason string, actor *outbox.ActorRef) (settlement, error) {
	repo := s.repo.WithTx(tx)
	merged := mergeDetails(payment.PaymentDetails, details)
	txID := ""
	if payment.TransactionID != nil {
		txID = *payment.TransactionID
	}

	if outcome == OutcomeFailed {
		if payment.Status != enums.PaymentStatusPending {
			return settlement{result: ResultNoop}, nil
		}
		if merged.Stripe != nil && reason != "" {
			v := *merged.Stripe
			v.LastError = pick(v.LastError, reason)
			merged.Stripe = &v
		}
		ok, err := repo.TransitionPayment(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, map[string]any{
			"payment_details": merged,
		})
		if err != nil {
			return settlement{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
		}
		if !ok {
			return settlement{result: ResultNoop}, nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor,
			Data: payloads.PaymentFailedEvent{
				OrderID:       payment.OrderID,
				PaymentID:     payment.ID,
				Provider:      payment.PaymentMethod,
				TransactionID: txID,
				Reason:        reason,
				FailedAt:      s.now(),
			},
		}); err != nil {
			return settlement{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment event")
		}
		payment.Status = enums.PaymentStatusFailed
		return settlement{result: ResultFailed}, nil
	}

	switch payment.Status {
	case enums.PaymentStatusCompleted, enums.PaymentStatusRefunded:
		return settlement{result: ResultNoop}, nil
	}
	ok, err := repo.TransitionPayment(ctx, payment.ID, payment.Status, enums.PaymentStatusCompleted, map[string]any{
		"payment_details": merged,
	})
	if err != nil {
		return settlement{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment completed")
	}
	if !ok {
		return settlement{result: ResultNoop}, nil
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.PaymentDetails = merged

	from, moved, err := s.orders.MarkProcessing(ctx, tx, payment.OrderID)
	if err != nil {
		return settlement{}, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   payment.OrderID,
		Actor:         actor,
		Data: payloads.OrderPaidEvent{
			OrderID:       payment.OrderID,
			PaymentID:     payment.ID,
			Provider:      payment.PaymentMethod,
			TransactionID: txID,
			AmountCents:   payment.AmountCents,
			PaidAt:        s.now(),
		},
	}); err != nil {
		return settlement{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment event")
	}
	return settlement{result: ResultCompleted, orderFrom: from, orderMoved: moved}, nil
}

func (s *service) afterSettle(ctx context.Context, payment *models.Payment, settled settlement) {
	if settled.result == "" {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, payment.OrderID.String()), map[string]any{
		"payment_id": payment.ID.String(),
		"provider":   payment.PaymentMethod,
		"result":     settled.result,
	})
	if settled.orderMoved {
		s.metrics.OrderTransition(string(enums.OrderStatusPending), string(enums.OrderStatusProcessing))
	}
	if settled.result == ResultCompleted && settled.orderFrom == enums.OrderStatusCancelled {
		s.logg.Warn(logCtx, "payment completed for cancelled order")
		return
	}
	if settled.result == ResultNoop {
		s.logg.Debug(logCtx, "payment already settled")
		return
	}
	s.logg.Info(logCtx, "payment settled")
}

// ReconcileStale asks each provider about pending attempts that have not
// moved since cutoff and settles the ones it reports as final.
func (s *service) ReconcileStale(ctx context.Context, cutoff time.Time, limit int) (SweepResult, error) {
	var result SweepResult
	rows, err := s.repo.ListStalePendingPayments(ctx, cutoff, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale payments")
	}

	var errs error
	for i := range rows {
		payment := rows[i]
		result.Checked++
		outcome, details, reason, err := s.providerOutcome(ctx, &payment)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("poll payment %s: %w", payment.ID, err))
			continue
		}
		if outcome == "" {
			continue
		}
		settled, err := s.Reconcile(ctx, ReconcileInput{
			Provider:       payment.PaymentMethod,
			OrderID:        payment.OrderID,
			TransactionIDs: []string{*payment.TransactionID},
			Outcome:        outcome,
			Details:        details,
			Reason:         reason,
			Source:         "payment-reconcile",
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile payment %s: %w", payment.ID, err))
			continue
		}
		if settled == ResultCompleted || settled == ResultFailed {
			result.Settled++
		}
	}
	return result, errs
}

// providerOutcome maps the provider's current view of an attempt to an
// outcome. An empty outcome means the attempt is still in flight.
func (s *service) providerOutcome(ctx context.Context, payment *models.Payment) (Outcome, *types.PaymentDetails, string, error) {
	txID := *payment.TransactionID
	switch payment.PaymentMethod {
	case enums.PaymentMethodStripe:
		if s.stripe == nil {
			return "", nil, "", nil
		}
		intent, err := s.stripe.GetPaymentIntent(ctx, txID)
		if err != nil {
			return "", nil, "", err
		}
		details := types.NewStripeDetails(types.StripeDetails{
			PaymentIntentID: intent.ID,
			IntentStatus:    string(intent.Status),
		})
		switch intent.Status {
		case stripe.PaymentIntentStatusSucceeded:
			return OutcomeSucceeded, &details, "", nil
		case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
			reason := "stripe intent " + string(intent.Status)
			if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
				reason = intent.LastPaymentError.Msg
			}
			return OutcomeFailed, &details, reason, nil
		}
	case enums.PaymentMethodPayPal:
		if s.paypal == nil {
			return "", nil, "", nil
		}
		order, err := s.paypal.GetOrder(ctx, txID)
		if err != nil {
			return "", nil, "", err
		}
		v := types.PayPalDetails{OrderID: order.ID, OrderStatus: order.Status}
		if capture := order.FirstCapture(); capture != nil {
			v.CaptureID = capture.ID
		}
		details := types.NewPayPalDetails(v)
		switch order.Status {
		case paypalCompleted:
			return OutcomeSucceeded, &details, "", nil
		case paypalVoided:
			return OutcomeFailed, &details, "paypal order voided", nil
		}
	case enums.PaymentMethodSquare:
		if s.square == nil {
			return "", nil, "", nil
		}
		charged, err := s.square.GetPayment(ctx, txID)
		if err != nil {
			return "", nil, "", err
		}
		status := deref(charged.Status)
		details := types.NewSquareDetails(types.SquareDetails{
			PaymentID:     deref(charged.ID),
			PaymentStatus: status,
			ReceiptURL:    deref(charged.ReceiptURL),
		})
		switch status {
		case squareCompleted:
			return OutcomeSucceeded, &details, "", nil
		case squareFailed, squareCanceled:
			return OutcomeFailed, &details, "square payment " + status, nil
		}
	}
	return "", nil, "", nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
