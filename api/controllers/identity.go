package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/api/middleware"
	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

func currentUserID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id.UserID, nil
}

// currentActor treats an unrecognised role as customer.
func currentActor(r *http.Request) (orders.Actor, error) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	role := id.Role
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return orders.Actor{UserID: id.UserID, Role: role}, nil
}
