package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	BuyerEmail     string
	// Autocomplete charges in one step instead of authorize-then-complete.
	Autocomplete bool
}

func (p PaymentCreateParams) validate() error {
	switch {
	case strings.TrimSpace(p.SourceID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "square source id is required")
	case p.AmountCents <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "square amount must be positive")
	case strings.TrimSpace(p.LocationID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "square location id is required")
	}
	return nil
}

func (p PaymentCreateParams) request(key string) *sq.CreatePaymentRequest {
	autocomplete := p.Autocomplete
	return &sq.CreatePaymentRequest{
		IdempotencyKey:    key,
		SourceID:          p.SourceID,
		LocationID:        optional(p.LocationID),
		AmountMoney:       money(p.AmountCents, p.Currency),
		Autocomplete:      &autocomplete,
		Note:              optional(p.Note),
		ReferenceID:       optional(p.ReferenceID),
		BuyerEmailAddress: optional(p.BuyerEmail),
	}
}

type RefundParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundParams) validate() error {
	if strings.TrimSpace(p.PaymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "square payment id is required")
	}
	if p.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	return nil
}

func (p RefundParams) request(key string) *sq.RefundPaymentRequest {
	return &sq.RefundPaymentRequest{
		IdempotencyKey: key,
		PaymentID:      optional(p.PaymentID),
		AmountMoney:    money(p.AmountCents, p.Currency),
		Reason:         optional(p.Reason),
	}
}

// optional returns nil for blank input so the field is omitted on the wire.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// money defaults to USD; amounts are in the currency's minor unit.
func money(cents int64, currency string) *sq.Money {
	code := sq.Currency(strings.ToUpper(strings.TrimSpace(currency)))
	if code == "" {
		code = sq.Currency("USD")
	}
	return &sq.Money{Amount: &cents, Currency: &code}
}
