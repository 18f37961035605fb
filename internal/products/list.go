package product

import (
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Team          string
	Year          *int
	Condition     *enums.ProductCondition
	Size          *enums.ProductSize
	MinPriceCents *int64
	MaxPriceCents *int64
	Featured      *bool
	Search        string
}

// ListProductsInput captures the inputs needed to filter and paginate the catalog.
type ListProductsInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products   []ProductDTO    `json:"products"`
	Pagination pagination.Meta `json:"pagination"`
}

const defaultFeaturedLimit = 8
