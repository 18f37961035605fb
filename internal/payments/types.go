package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Outcome is the provider-reported result of a payment attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// ReconcileResult describes what Reconcile did with an event.
type ReconcileResult string

const (
	ResultCompleted ReconcileResult = "completed"
	ResultFailed    ReconcileResult = "failed"
	ResultNoop      ReconcileResult = "noop"
	ResultUnmatched ReconcileResult = "unmatched"
)

// ReconcileInput is a provider outcome for one attempt. TransactionIDs are the
// candidate provider ids; the first stored one that matches wins.
type ReconcileInput struct {
	Provider       enums.PaymentMethod
	OrderID        uuid.UUID
	TransactionIDs []string
	Outcome        Outcome
	Details        *types.PaymentDetails
	Reason         string
	Source         string
}

// InitiateInput requests a provider payment for an existing order. Amount,
// when set, must equal the order total.
type InitiateInput struct {
	OrderID    uuid.UUID
	Amount     *decimal.Decimal
	ReturnURL  string
	CancelURL  string
	SourceID   string
	LocationID string
}

// CheckoutInput either pays an existing order or creates one from CartItems.
type CheckoutInput struct {
	OrderID         *uuid.UUID
	CartItems       []orders.LineInput
	ShippingAddress *types.Address
	AddressID       *uuid.UUID
	PaymentMethod   enums.PaymentMethod
	Provider        InitiateInput
}

// InitiationResult is returned by checkout and the provider endpoints. Only
// the fields of the chosen provider are populated.
type InitiationResult struct {
	Success         bool                `json:"success"`
	OrderID         uuid.UUID           `json:"orderId"`
	PaymentID       uuid.UUID           `json:"paymentId"`
	Amount          string              `json:"amount"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	ClientSecret    string              `json:"clientSecret,omitempty"`
	PaymentIntentID string              `json:"paymentIntentId,omitempty"`
	PayPalOrderID   string              `json:"paypalOrderId,omitempty"`
	ApprovalURL     string              `json:"approvalUrl,omitempty"`
	SquarePaymentID string              `json:"squarePaymentId,omitempty"`
	Status          string              `json:"status,omitempty"`
	ReceiptURL      string              `json:"receiptUrl,omitempty"`
}

type CaptureResult struct {
	Success   bool      `json:"success"`
	OrderID   uuid.UUID `json:"orderId"`
	CaptureID string    `json:"captureId"`
	Status    string    `json:"status"`
}

// RefundInput refunds a completed payment. A nil Amount refunds it in full.
type RefundInput struct {
	PaymentID uuid.UUID
	Amount    *decimal.Decimal
}

// SweepResult summarizes one pass over stale pending attempts.
type SweepResult struct {
	Checked int
	Settled int
}
