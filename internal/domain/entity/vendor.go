package entity

import "time"

// Vendor is a supplier that PRs may reference by code.
type Vendor struct {
	ID            int64     `json:"id"`
	Code          string    `json:"vendor_code"`
	Name          string    `json:"vendor_name"`
	Type          string    `json:"vendor_type"`
	TaxID         string    `json:"tax_id,omitempty"`
	Address       string    `json:"address,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	PaymentTerms  string    `json:"payment_terms"`
	Currency      string    `json:"order_currency"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
