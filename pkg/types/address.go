package types

import "strings"

// Address is the shipping/billing address snapshot stored as jsonb.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsZero reports whether no address fields were provided.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Validate checks the minimal fields a shippable address needs.
func (a Address) Validate() error {
	missing := []string{}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return &AddressError{Missing: missing}
	}
	return nil
}

// AddressError lists the missing address fields.
type AddressError struct {
	Missing []string
}

func (e *AddressError) Error() string {
	return "address missing " + strings.Join(e.Missing, ", ")
}
