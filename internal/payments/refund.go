package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/outbox/payloads"
	"github.com/classickits/jerseystore-backend/pkg/square"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Refund returns money for a completed payment through its provider and
// marks the attempt refunded.
func (s *service) Refund(ctx context.Context, actor orders.Actor, input RefundInput) (*models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	payment, err := s.repo.FindPayment(ctx, input.PaymentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded").WithDetails(map[string]any{
			"status": payment.Status,
		})
	}

	amount := payment.AmountCents
	if input.Amount != nil {
		cents, err := types.DecimalToCents(*input.Amount)
		if err != nil || cents <= 0 || cents > payment.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and at most the payment amount").WithDetails(map[string]any{
				"max": types.FormatCents(payment.AmountCents),
			})
		}
		amount = cents
	}

	refundID, err := s.refundWithProvider(ctx, payment, amount)
	if err != nil {
		return nil, err
	}

	details := payment.PaymentDetails.WithRefund(refundID)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).TransitionPayment(ctx, payment.ID, enums.PaymentStatusCompleted, enums.PaymentStatusRefunded, map[string]any{
			"payment_details": details,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment refunded")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment changed during refund")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         outbox.UserActor(actor.UserID, string(actor.Role)),
			Data: payloads.PaymentRefundedEvent{
				OrderID:     payment.OrderID,
				PaymentID:   payment.ID,
				Provider:    payment.PaymentMethod,
				RefundID:    refundID,
				AmountCents: amount,
				RefundedAt:  s.now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	payment.Status = enums.PaymentStatusRefunded
	payment.PaymentDetails = details
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, payment.OrderID.String()), map[string]any{
		"payment_id":   payment.ID.String(),
		"refund_id":    refundID,
		"amount_cents": amount,
	})
	s.logg.Info(logCtx, "payment refunded")
	return payment, nil
}

func (s *service) refundWithProvider(ctx context.Context, payment *models.Payment, amount int64) (string, error) {
	txID := ""
	if payment.TransactionID != nil {
		txID = *payment.TransactionID
	}
	key := "refund-" + payment.ID.String()

	var (
		refundID string
		err      error
	)
	switch payment.PaymentMethod {
	case enums.PaymentMethodStripe:
		if s.stripe == nil {
			return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe payments are not configured")
		}
		intentID := txID
		if d := payment.PaymentDetails.Stripe; d != nil && d.PaymentIntentID != "" {
			intentID = d.PaymentIntentID
		}
		refund, rerr := s.stripe.RefundPaymentIntent(ctx, intentID, amount, key)
		if rerr == nil && refund != nil {
			refundID = refund.ID
		}
		err = rerr
	case enums.PaymentMethodPayPal:
		if s.paypal == nil {
			return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal payments are not configured")
		}
		d := payment.PaymentDetails.PayPal
		if d == nil || d.CaptureID == "" {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "paypal payment has no capture to refund")
		}
		refund, rerr := s.paypal.RefundCapture(ctx, d.CaptureID, types.FormatCents(amount), key)
		if rerr == nil && refund != nil {
			refundID = refund.ID
		}
		err = rerr
	case enums.PaymentMethodSquare:
		if s.square == nil {
			return "", pkgerrors.New(pkgerrors.CodeDependency, "square payments are not configured")
		}
		refund, rerr := s.square.RefundPayment(ctx, square.RefundParams{
			PaymentID:      txID,
			AmountCents:    amount,
			Reason:         "Refund for order " + payment.OrderID.String(),
			IdempotencyKey: key,
		})
		if rerr == nil && refund != nil {
			refundID = refund.ID
		}
		err = rerr
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, payment.OrderID.String()), "provider refund failed", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to refund payment")
	}
	return refundID, nil
}
