package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the shipping address snapshot embedded on orders.
type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country"`
}

// Normalize trims fields and defaults the country.
func (a Address) Normalize() Address {
	out := Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
	}
	if out.Country == "" {
		out.Country = "US"
	}
	return out
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Street) == "":
		return fmt.Errorf("address: missing street")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.State) == "":
		return fmt.Errorf("address: missing state")
	case strings.TrimSpace(a.ZipCode) == "":
		return fmt.Errorf("address: missing zipCode")
	}
	return nil
}

// Value stores the address as JSON.
func (a Address) Value() (driver.Value, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(a.Normalize())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes the JSON column.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = Address{}
		return nil
	}
	return json.Unmarshal([]byte(raw), a)
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
