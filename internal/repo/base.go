package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

// Base carries the connection a store repository queries through. It is
// embedded by the user and address repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind swaps the connection for tx, leaving b untouched when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Page is a query scope applying the normalized limit and offset of params.
func Page(params pagination.Params) func(*gorm.DB) *gorm.DB {
	params = params.Normalize()
	return func(q *gorm.DB) *gorm.DB {
		return q.Limit(params.Limit).Offset(params.Offset())
	}
}
