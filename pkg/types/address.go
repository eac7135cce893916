package types

import (
	"fmt"
	"strings"
)

// Address is the shipping address snapshot stored on each order. It is
// persisted as jsonb, so the snapshot survives later edits to the buyer's
// address book.
type Address struct {
	Name       string  `json:"name" validate:"required"`
	Phone      string  `json:"phone" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country"`
}

// Validate checks the fields a carrier needs to book a shipment.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("address: missing state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	if strings.TrimSpace(a.Phone) == "" {
		return fmt.Errorf("address: missing phone")
	}
	return nil
}

// CountryOrDefault returns the country code, defaulting to IN.
func (a Address) CountryOrDefault() string {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		return "IN"
	}
	return country
}
