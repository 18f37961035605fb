package controllers

import (
	"net/http"
	"strings"

	"github.com/classickits/jerseystore-backend/api/responses"
	"github.com/classickits/jerseystore-backend/api/validators"
	"github.com/classickits/jerseystore-backend/internal/users"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

func usersUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "user service unavailable"))
}

// AdminListUsers accepts ?search=&role=admin|customer|all&page=&limit=.
func AdminListUsers(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			usersUnavailable(w, r, logg)
			return
		}
		q := r.URL.Query()
		input := users.ListInput{
			Search:     validators.SanitizeString(q.Get("search"), 100),
			Pagination: pagination.FromQuery(q),
		}
		if raw := strings.ToLower(strings.TrimSpace(q.Get("role"))); raw != "" && raw != "all" {
			role := enums.UserRole(raw)
			input.Role = &role
		}
		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminGetUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			usersUnavailable(w, r, logg)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func AdminUpdateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			usersUnavailable(w, r, logg)
			return
		}
		actorID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body users.UpdateUserInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Update(r.Context(), actorID, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminDeleteUser refuses to delete the caller's own account.
func AdminDeleteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			usersUnavailable(w, r, logg)
			return
		}
		actorID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actorID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
