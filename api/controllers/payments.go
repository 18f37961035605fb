package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classickits/jerseystore-backend/api/responses"
	"github.com/classickits/jerseystore-backend/api/validators"
	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/internal/payments"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

func paymentsUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payment service unavailable"))
}

// providerFields are the provider-specific inputs shared by checkout and
// the initiation endpoints.
type providerFields struct {
	ReturnURL  string `json:"returnUrl,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	SourceID   string `json:"sourceId,omitempty" validate:"omitempty,max=255"`
	LocationID string `json:"locationId,omitempty" validate:"omitempty,max=64"`
}

type checkoutRequest struct {
	OrderID         *uuid.UUID         `json:"orderId,omitempty"`
	CartItems       []orders.LineInput `json:"cartItems,omitempty" validate:"omitempty,dive"`
	ShippingAddress *types.Address     `json:"shippingAddress,omitempty"`
	AddressID       *uuid.UUID         `json:"addressId,omitempty"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required"`
	PaymentDetails  *providerFields    `json:"paymentDetails,omitempty"`
}

type initiateRequest struct {
	OrderID uuid.UUID        `json:"orderId" validate:"required"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	providerFields
}

func (r initiateRequest) toInput() payments.InitiateInput {
	return payments.InitiateInput{
		OrderID:    r.OrderID,
		Amount:     r.Amount,
		ReturnURL:  r.ReturnURL,
		CancelURL:  r.CancelURL,
		SourceID:   r.SourceID,
		LocationID: r.LocationID,
	}
}

// Checkout pays an existing pending order or creates one from cartItems
// and pays it.
func Checkout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentsUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(body.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := payments.CheckoutInput{
			OrderID:         body.OrderID,
			CartItems:       body.CartItems,
			ShippingAddress: body.ShippingAddress,
			AddressID:       body.AddressID,
			PaymentMethod:   method,
		}
		if d := body.PaymentDetails; d != nil {
			input.Provider = payments.InitiateInput{
				ReturnURL:  d.ReturnURL,
				CancelURL:  d.CancelURL,
				SourceID:   d.SourceID,
				LocationID: d.LocationID,
			}
		}

		result, err := svc.Checkout(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type initiateFunc func(ctx context.Context, actor orders.Actor, input payments.InitiateInput) (*payments.InitiationResult, error)

func initiate(pick func(payments.Service) initiateFunc, svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentsUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body initiateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := pick(svc)(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CreateStripeIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return initiate(func(s payments.Service) initiateFunc { return s.InitiateStripe }, svc, logg)
}

func CreatePayPalOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return initiate(func(s payments.Service) initiateFunc { return s.InitiatePayPal }, svc, logg)
}

func CreateSquarePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return initiate(func(s payments.Service) initiateFunc { return s.InitiateSquare }, svc, logg)
}

type captureRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
}

// CapturePayPal completes an approved PayPal order. orderId is PayPal's id.
func CapturePayPal(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentsUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body captureRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CapturePayPal(r.Context(), actor, strings.TrimSpace(body.OrderID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type refundRequest struct {
	PaymentID uuid.UUID        `json:"paymentId" validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

func AdminRefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentsUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.Refund(r.Context(), actor, payments.RefundInput{
			PaymentID: body.PaymentID,
			Amount:    body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewPaymentDTO(*payment))
	}
}

