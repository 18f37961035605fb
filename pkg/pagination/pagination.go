package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers or services. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Meta is returned alongside every paginated list.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize clamps page to ≥1 and limit to the allowed range.
func (p Params) Normalize() Params {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return Params{Page: page, Limit: NormalizeLimit(p.Limit)}
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NewMeta builds the response metadata for a total row count.
func NewMeta(p Params, total int64) Meta {
	n := p.Normalize()
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(n.Limit)))
	}
	return Meta{Page: n.Page, Limit: n.Limit, Total: total, TotalPages: pages}
}

// FromQuery reads page and limit query parameters. Malformed values fall back
// to defaults rather than failing the request.
func FromQuery(values url.Values) Params {
	return Params{
		Page:  atoi(values.Get("page")),
		Limit: atoi(values.Get("limit")),
	}.Normalize()
}

func atoi(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}
