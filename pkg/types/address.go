package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DeliveryAddress is the shipping destination captured on an order. Clients
// may send either the structured object or a bare string, which is kept as
// the street line.
type DeliveryAddress struct {
	FullName   string `json:"fullName,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type deliveryAddressAlias DeliveryAddress

// UnmarshalJSON implements json.Unmarshaler.
func (a *DeliveryAddress) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = DeliveryAddress{}
		return nil
	}

	if trimmed[0] == '"' {
		var street string
		if err := json.Unmarshal(trimmed, &street); err != nil {
			return fmt.Errorf("delivery address: %w", err)
		}
		*a = DeliveryAddress{Street: strings.TrimSpace(street)}
		return nil
	}

	var alias deliveryAddressAlias
	if err := json.Unmarshal(trimmed, &alias); err != nil {
		return fmt.Errorf("delivery address: %w", err)
	}
	*a = DeliveryAddress(alias).Trimmed()
	return nil
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (a DeliveryAddress) Trimmed() DeliveryAddress {
	return DeliveryAddress{
		FullName:   strings.TrimSpace(a.FullName),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

// IsZero reports whether no address field was supplied.
func (a DeliveryAddress) IsZero() bool {
	return a.Trimmed() == DeliveryAddress{}
}
