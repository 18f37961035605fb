package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Address is a saved address in a user's address book.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Street    string    `gorm:"column:street;not null"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	ZipCode   string    `gorm:"column:zip_code;not null"`
	Country   string    `gorm:"column:country;not null;default:'US'"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Snapshot converts the saved address into an order shipping snapshot.
func (a Address) Snapshot() types.Address {
	return types.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}.Normalize()
}
