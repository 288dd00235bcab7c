package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Supported jurisdiction
const (
	CountryName = "Česká republika"
	CountryCode = "CZ"

	DefaultCurrency = "CZK"
	DefaultUnit     = "ks"

	// DefaultItemDescription names the synthesized line when the transaction has no name
	DefaultItemDescription = "Položka"

	// DefaultVATRate keys the synthesized breakdown entry when no rate was extracted
	DefaultVATRate = "21"

	// UnknownCustomer is used when neither extraction nor the transaction name a customer
	UnknownCustomer = "Unknown Customer"

	// PaymentTermDays is added to the issue date when no due date was extracted
	PaymentTermDays = 14
)

// Invoice is the canonical invoice document built for a single export
type Invoice struct {
	ID           string     `json:"id"`   // Invoice number
	UUID         string     `json:"uuid"` // Transaction identifier
	IssueDate    time.Time  `json:"issue_date"`
	TaxPointDate *time.Time `json:"tax_point_date,omitempty"` // DUZP
	CurrencyCode string     `json:"currency_code"`

	Supplier Party `json:"supplier"`
	Customer Party `json:"customer"`

	LineItems []LineItem `json:"line_items"`

	Totals      Totals      `json:"totals"`
	PaymentInfo PaymentInfo `json:"payment_info"`
}

// Party represents supplier or customer
type Party struct {
	Name        string       `json:"name"`
	IC          string       `json:"ic,omitempty"`  // IČ, 8 digits
	DIC         string       `json:"dic,omitempty"` // DIČ, e.g. CZ12345678
	Address     Address      `json:"address"`
	BankAccount *BankAccount `json:"bank_account,omitempty"`
}

// Address is a structured postal address
type Address struct {
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number"`
	City           string `json:"city"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
}

// BankAccount holds a local account number and bank code
type BankAccount struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	IBAN          string `json:"iban,omitempty"`
	BIC           string `json:"bic,omitempty"`
}

// LineItem represents an invoice line
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`  // Without VAT
	TotalPrice  decimal.Decimal `json:"total_price"` // Without VAT
	VATRate     decimal.Decimal `json:"vat_rate"`    // Percent
	VATAmount   decimal.Decimal `json:"vat_amount"`
}

// TaxInclusiveAmount returns TotalPrice + VATAmount
func (li LineItem) TaxInclusiveAmount() decimal.Decimal {
	return li.TotalPrice.Add(li.VATAmount)
}

// UnitPriceTaxInclusive returns UnitPrice * (1 + VATRate/100)
func (li LineItem) UnitPriceTaxInclusive() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(1).Add(li.VATRate.Div(decimal.NewFromInt(100))))
}

// VATAmount is one entry of the per-rate breakdown
type VATAmount struct {
	Base   decimal.Decimal `json:"base"`
	Amount decimal.Decimal `json:"amount"`
}

// TaxInclusive returns Base + Amount
func (v VATAmount) TaxInclusive() decimal.Decimal {
	return v.Base.Add(v.Amount)
}

// Totals holds invoice-level amounts
type Totals struct {
	TotalWithoutVAT decimal.Decimal      `json:"total_without_vat"`
	TotalVAT        decimal.Decimal      `json:"total_vat"`
	TotalWithVAT    decimal.Decimal      `json:"total_with_vat"`
	VATBreakdown    map[string]VATAmount `json:"vat_breakdown"` // Keyed by rate, e.g. "21"
}

// Rates returns breakdown keys in ascending numeric order.
// Keys that are not numbers sort after numeric ones, lexically.
func (t Totals) Rates() []string {
	rates := make([]string, 0, len(t.VATBreakdown))
	for rate := range t.VATBreakdown {
		rates = append(rates, rate)
	}

	sort.SliceStable(rates, func(i, j int) bool {
		a, errA := decimal.NewFromString(rates[i])
		b, errB := decimal.NewFromString(rates[j])
		switch {
		case errA == nil && errB == nil:
			if a.Equal(b) {
				return rates[i] < rates[j]
			}
			return a.LessThan(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return rates[i] < rates[j]
		}
	})
	return rates
}

// BreakdownBase sums the taxable base over all rates
func (t Totals) BreakdownBase() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.VATBreakdown {
		sum = sum.Add(v.Base)
	}
	return sum
}

// PaymentInfo holds payment identification and terms
type PaymentInfo struct {
	VariableSymbol    string    `json:"variable_symbol,omitempty"`
	ConstantSymbol    string    `json:"constant_symbol,omitempty"`
	SpecificSymbol    string    `json:"specific_symbol,omitempty"`
	DueDate           time.Time `json:"due_date"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	PaymentMethodCode string    `json:"payment_method_code"`
}
