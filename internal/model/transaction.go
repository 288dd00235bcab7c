package model

import "time"

// Transaction is the input aggregate for one export.
// Extra carries previously extracted attributes keyed by field code;
// values may be strings, numbers, or JSON-encoded strings/objects.
type Transaction struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Merchant     string         `json:"merchant,omitempty"` // Counterparty
	Total        int64          `json:"total"`              // Minor units
	CurrencyCode string         `json:"currency_code,omitempty"`
	IssuedAt     *time.Time     `json:"issued_at,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Profile is the exporting user's business profile
type Profile struct {
	BusinessName    string `json:"business_name"`
	BusinessAddress string `json:"business_address"`
	BusinessIC      string `json:"business_ic,omitempty"`
	BusinessDIC     string `json:"business_dic,omitempty"`
	BankAccount     string `json:"bank_account,omitempty"`
	BankCode        string `json:"bank_code,omitempty"`
}
