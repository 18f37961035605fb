package paypalwebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/internal/payments"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
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

type Event struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  CaptureResource `json:"resource"`
}

// CaptureResource is the capture object carried by PAYMENT.CAPTURE.* events.
type CaptureResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	CustomID          string            `json:"custom_id"`
	InvoiceID         string            `json:"invoice_id"`
	Amount            *paypal.Money     `json:"amount,omitempty"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
}

type SupplementaryData struct {
	RelatedIDs struct {
		OrderID string `json:"order_id"`
	} `json:"related_ids"`
}

// ParseEvent decodes a webhook body. The event id is required for dedupe.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paypal event")
	}
	if event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal event id missing")
	}
	return &event, nil
}

// HandleEvent reconciles capture outcomes. The PayPal order id is tried
// before the capture id since initiation stores the order id.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (payments.ReconcileResult, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "paypal event required")
	}

	var outcome payments.Outcome
	switch event.EventType {
	case EventCaptureCompleted:
		outcome = payments.OutcomeSucceeded
	case EventCaptureDenied:
		outcome = payments.OutcomeFailed
	default:
		return "", nil
	}

	resource := event.Resource
	relatedOrder := resource.SupplementaryData.RelatedIDs.OrderID
	if resource.ID == "" && relatedOrder == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "paypal capture id missing")
	}

	orderID, err := payments.ParseOrderReference(paypal.LocalOrderID(resource.CustomID, resource.InvoiceID))
	if err != nil {
		orderID = uuid.Nil
	}
	details := types.NewPayPalDetails(types.PayPalDetails{
		OrderID:     relatedOrder,
		CaptureID:   resource.ID,
		OrderStatus: resource.Status,
	})
	reason := ""
	if outcome == payments.OutcomeFailed {
		reason = "paypal capture " + resource.Status
	}
	return s.payments.Reconcile(ctx, payments.ReconcileInput{
		Provider:       enums.PaymentMethodPayPal,
		OrderID:        orderID,
		TransactionIDs: []string{relatedOrder, resource.ID},
		Outcome:        outcome,
		Details:        &details,
		Reason:         reason,
		Source:         "paypal-webhook",
	})
}
