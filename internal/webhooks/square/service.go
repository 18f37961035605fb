package squarewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/internal/payments"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
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

type SquareWebhookEvent struct {
	MerchantID string            `json:"merchant_id"`
	EventID    string            `json:"event_id"`
	Type       string            `json:"type"`
	Data       SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

// SquarePayment is the subset of the Square payment object read here.
type SquarePayment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	LocationID  string `json:"location_id"`
	ReceiptURL  string `json:"receipt_url"`
}

// ParseEvent decodes a webhook body. The event id is required for dedupe.
func ParseEvent(body []byte) (*SquareWebhookEvent, error) {
	var event SquareWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
	}
	if event.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square event id missing")
	}
	return &event, nil
}

// HandleEvent reconciles payment.created and payment.updated events once the
// payment reaches a final status; in-flight statuses are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) (payments.ReconcileResult, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return "", nil
	}
	payment := event.Data.Object.Payment
	if payment == nil || payment.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square payment payload missing")
	}

	var outcome payments.Outcome
	switch strings.ToUpper(payment.Status) {
	case "COMPLETED":
		outcome = payments.OutcomeSucceeded
	case "FAILED", "CANCELED":
		outcome = payments.OutcomeFailed
	default:
		return "", nil
	}

	orderID, err := payments.ParseOrderReference(payment.ReferenceID)
	if err != nil {
		orderID = uuid.Nil
	}
	details := types.NewSquareDetails(types.SquareDetails{
		PaymentID:     payment.ID,
		LocationID:    payment.LocationID,
		PaymentStatus: payment.Status,
		ReceiptURL:    payment.ReceiptURL,
	})
	reason := ""
	if outcome == payments.OutcomeFailed {
		reason = "square payment " + payment.Status
	}
	return s.payments.Reconcile(ctx, payments.ReconcileInput{
		Provider:       enums.PaymentMethodSquare,
		OrderID:        orderID,
		TransactionIDs: []string{payment.ID},
		Outcome:        outcome,
		Details:        &details,
		Reason:         reason,
		Source:         "square-webhook",
	})
}
