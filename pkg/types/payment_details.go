package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/classickits/jerseystore-backend/pkg/enums"
)

// PaymentDetails is provider-specific payment metadata. Exactly one variant
// is populated and it must match Provider.
type PaymentDetails struct {
	Provider enums.PaymentMethod `json:"provider"`
	Stripe   *StripeDetails      `json:"stripe,omitempty"`
	PayPal   *PayPalDetails      `json:"paypal,omitempty"`
	Square   *SquareDetails      `json:"square,omitempty"`
}

// StripeDetails records the payment intent backing a Stripe attempt.
type StripeDetails struct {
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	IntentStatus    string `json:"intentStatus,omitempty"`
	LastError       string `json:"lastError,omitempty"`
	RefundID        string `json:"refundId,omitempty"`
}

// PayPalDetails records the PayPal order and capture.
type PayPalDetails struct {
	OrderID     string `json:"orderId,omitempty"`
	ApprovalURL string `json:"approvalUrl,omitempty"`
	CaptureID   string `json:"captureId,omitempty"`
	OrderStatus string `json:"orderStatus,omitempty"`
	RefundID    string `json:"refundId,omitempty"`
}

// SquareDetails records the synchronous Square charge.
type SquareDetails struct {
	PaymentID     string `json:"paymentId,omitempty"`
	LocationID    string `json:"locationId,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	ReceiptURL    string `json:"receiptUrl,omitempty"`
	RefundID      string `json:"refundId,omitempty"`
}

// NewStripeDetails builds a Stripe-tagged PaymentDetails.
func NewStripeDetails(d StripeDetails) PaymentDetails {
	return PaymentDetails{Provider: enums.PaymentMethodStripe, Stripe: &d}
}

// NewPayPalDetails builds a PayPal-tagged PaymentDetails.
func NewPayPalDetails(d PayPalDetails) PaymentDetails {
	return PaymentDetails{Provider: enums.PaymentMethodPayPal, PayPal: &d}
}

// NewSquareDetails builds a Square-tagged PaymentDetails.
func NewSquareDetails(d SquareDetails) PaymentDetails {
	return PaymentDetails{Provider: enums.PaymentMethodSquare, Square: &d}
}

// EmptyDetails returns a details value carrying only the provider tag.
func EmptyDetails(provider enums.PaymentMethod) PaymentDetails {
	switch provider {
	case enums.PaymentMethodStripe:
		return NewStripeDetails(StripeDetails{})
	case enums.PaymentMethodPayPal:
		return NewPayPalDetails(PayPalDetails{})
	case enums.PaymentMethodSquare:
		return NewSquareDetails(SquareDetails{})
	default:
		return PaymentDetails{Provider: provider}
	}
}

// Validate enforces the single-variant invariant.
func (d PaymentDetails) Validate() error {
	if !d.Provider.IsValid() {
		return fmt.Errorf("payment details: invalid provider %q", d.Provider)
	}
	set := 0
	if d.Stripe != nil {
		set++
	}
	if d.PayPal != nil {
		set++
	}
	if d.Square != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("payment details: expected exactly one variant, got %d", set)
	}
	switch d.Provider {
	case enums.PaymentMethodStripe:
		if d.Stripe == nil {
			return fmt.Errorf("payment details: provider stripe without stripe variant")
		}
	case enums.PaymentMethodPayPal:
		if d.PayPal == nil {
			return fmt.Errorf("payment details: provider paypal without paypal variant")
		}
	case enums.PaymentMethodSquare:
		if d.Square == nil {
			return fmt.Errorf("payment details: provider square without square variant")
		}
	}
	return nil
}

// WithRefund returns a copy with the refund id recorded on the active variant.
func (d PaymentDetails) WithRefund(refundID string) PaymentDetails {
	switch {
	case d.Stripe != nil:
		v := *d.Stripe
		v.RefundID = refundID
		d.Stripe = &v
	case d.PayPal != nil:
		v := *d.PayPal
		v.RefundID = refundID
		d.PayPal = &v
	case d.Square != nil:
		v := *d.Square
		v.RefundID = refundID
		d.Square = &v
	}
	return d
}

// UnmarshalJSON rejects unknown providers and mismatched variants.
func (d *PaymentDetails) UnmarshalJSON(data []byte) error {
	type alias PaymentDetails
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	out := PaymentDetails(decoded)
	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

// Value stores the details as JSON.
func (d PaymentDetails) Value() (driver.Value, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes the JSON column.
func (d *PaymentDetails) Scan(value interface{}) error {
	if value == nil {
		*d = PaymentDetails{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("payment details: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*d = PaymentDetails{}
		return nil
	}
	return json.Unmarshal([]byte(raw), d)
}
