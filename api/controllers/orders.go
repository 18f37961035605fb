package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/api/responses"
	"github.com/classickits/jerseystore-backend/api/validators"
	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

func ordersUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "order service unavailable"))
}

// createOrderRequest is the POST /orders body. paymentDetails is accepted
// for client compatibility; provider data is produced at initiation.
type createOrderRequest struct {
	ShippingAddress *types.Address  `json:"shippingAddress,omitempty"`
	AddressID       *uuid.UUID      `json:"addressId,omitempty"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required"`
	PaymentDetails  json.RawMessage `json:"paymentDetails,omitempty"`
}

// CreateOrder turns the caller's cart into a pending order.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			ordersUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(body.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Create(r.Context(), orders.CreateOrderInput{
			UserID:          actor.UserID,
			Role:            actor.Role,
			ShippingAddress: body.ShippingAddress,
			AddressID:       body.AddressID,
			PaymentMethod:   method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderDTO(order))
	}
}

// ListOrders returns the caller's orders, or every order for admins.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			ordersUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := orders.ListInput{Pagination: pagination.FromQuery(r.URL.Query())}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}
		list, err := svc.List(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			ordersUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderDTO(order))
	}
}

// AdminUpdateOrderStatus applies a lifecycle transition with optional
// tracking number and notes.
func AdminUpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			ordersUnavailable(w, r, logg)
			return
		}
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body orders.UpdateStatusInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), actor, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderDTO(order))
	}
}
