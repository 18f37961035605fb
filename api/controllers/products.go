package controllers

import (
	"net/http"
	"strings"

	"github.com/classickits/jerseystore-backend/api/responses"
	"github.com/classickits/jerseystore-backend/api/validators"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

func productsUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "product service unavailable"))
}

// ListProducts serves the filtered, paginated catalog.
func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}

		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), product.ListProductsInput{
			Filters:    filters,
			Pagination: pagination.FromQuery(r.URL.Query()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductFilters(r *http.Request) (product.ListFilters, error) {
	q := r.URL.Query()
	filters := product.ListFilters{
		Team:   validators.SanitizeString(q.Get("team"), 255),
		Search: validators.SanitizeString(q.Get("search"), 100),
	}

	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := validators.ParseQueryInt(r, "year", 0, 1900, 2100)
		if err != nil {
			return filters, err
		}
		filters.Year = &year
	}
	if raw := strings.TrimSpace(q.Get("condition")); raw != "" {
		condition, err := enums.ParseProductCondition(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition")
		}
		filters.Condition = &condition
	}
	if raw := strings.TrimSpace(q.Get("size")); raw != "" {
		size, err := enums.ParseProductSize(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid size")
		}
		filters.Size = &size
	}

	var err error
	if filters.MinPriceCents, err = validators.ParseQueryCents(r, "minPrice"); err != nil {
		return filters, err
	}
	if filters.MaxPriceCents, err = validators.ParseQueryCents(r, "maxPrice"); err != nil {
		return filters, err
	}
	if filters.Featured, err = validators.ParseQueryBool(r, "featured"); err != nil {
		return filters, err
	}
	return filters, nil
}

func ListFeaturedProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 8, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListFeatured(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// AdminCreateProduct adds a listing. Duplicate SKUs surface as conflicts.
func AdminCreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		var body product.CreateProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.CreateProduct(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func AdminUpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body product.UpdateProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateProduct(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminDeleteProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type inventoryRequest struct {
	Inventory *int `json:"inventory" validate:"required,min=0"`
}

func AdminSetInventory(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productsUnavailable(w, r, logg)
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body inventoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.SetInventory(r.Context(), id, *body.Inventory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
