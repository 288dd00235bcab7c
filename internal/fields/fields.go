// Package fields turns the loosely typed map of extracted invoice attributes
// into a typed record. Parse is called once at the assembler boundary.
package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	dec "github.com/rezonia/isdoc-export/internal/decimal"
)

// Extracted attribute codes
const (
	KeyInvoiceNumber  = "invoice_number"
	KeyVariableSymbol = "variable_symbol"
	KeyConstantSymbol = "constant_symbol"
	KeySpecificSymbol = "specific_symbol"

	KeyIssuedAt = "issuedAt"
	KeyDueDate  = "due_date"
	KeyTaxDate  = "tax_date"

	KeySupplierName        = "supplier_name"
	KeySupplierAddress     = "supplier_address"
	KeySupplierIC          = "supplier_ic"
	KeySupplierDIC         = "supplier_dic"
	KeySupplierBankAccount = "supplier_bank_account"
	KeySupplierBankCode    = "supplier_bank_code"

	KeyCustomerName    = "customer_name"
	KeyCustomerAddress = "customer_address"
	KeyCustomerIC      = "customer_ic"
	KeyCustomerDIC     = "customer_dic"

	KeyPaymentMethod = "payment_method"
	KeyLineItems     = "line_items"

	KeyTotalWithoutVAT = "total_without_vat"
	KeyTotal           = "total"
	KeyVATRate         = "vat_rate"
	KeyVAT             = "vat"
	KeyVATBase         = "total_vat_base"
	KeyVATAmounts      = "total_vat_amounts"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"2. 1. 2006",
	"02/01/2006",
}

// Extracted is the typed view of the extracted attributes.
// Empty strings, nil pointers and nil raw messages mean "absent".
type Extracted struct {
	InvoiceNumber  string
	VariableSymbol string
	ConstantSymbol string
	SpecificSymbol string

	IssuedAt *time.Time
	DueDate  *time.Time
	TaxDate  *time.Time

	SupplierName        string
	SupplierAddress     string
	SupplierIC          string
	SupplierDIC         string
	SupplierBankAccount string
	SupplierBankCode    string

	CustomerName    string
	CustomerAddress string
	CustomerIC      string
	CustomerDIC     string

	PaymentMethod string

	// Encoded collections, kept raw for the normalizers
	LineItems  json.RawMessage
	VATBase    json.RawMessage
	VATAmounts json.RawMessage

	TotalWithoutVAT *decimal.Decimal
	Total           *decimal.Decimal // Gross used when the transaction carries no amount
	VATRate         *decimal.Decimal
	VAT             *decimal.Decimal

	// Warnings lists values that were present but could not be interpreted
	Warnings []string
}

// Parse builds the typed record from the raw attribute map.
// A nil map yields an empty record.
func Parse(extra map[string]any) *Extracted {
	e := &Extracted{}
	if extra == nil {
		return e
	}

	e.InvoiceNumber = e.str(extra, KeyInvoiceNumber)
	e.VariableSymbol = e.str(extra, KeyVariableSymbol)
	e.ConstantSymbol = e.str(extra, KeyConstantSymbol)
	e.SpecificSymbol = e.str(extra, KeySpecificSymbol)

	e.IssuedAt = e.date(extra, KeyIssuedAt)
	e.DueDate = e.date(extra, KeyDueDate)
	e.TaxDate = e.date(extra, KeyTaxDate)

	e.SupplierName = e.str(extra, KeySupplierName)
	e.SupplierAddress = e.str(extra, KeySupplierAddress)
	e.SupplierIC = e.str(extra, KeySupplierIC)
	e.SupplierDIC = e.str(extra, KeySupplierDIC)
	e.SupplierBankAccount = e.str(extra, KeySupplierBankAccount)
	e.SupplierBankCode = e.str(extra, KeySupplierBankCode)

	e.CustomerName = e.str(extra, KeyCustomerName)
	e.CustomerAddress = e.str(extra, KeyCustomerAddress)
	e.CustomerIC = e.str(extra, KeyCustomerIC)
	e.CustomerDIC = e.str(extra, KeyCustomerDIC)

	e.PaymentMethod = e.str(extra, KeyPaymentMethod)

	e.LineItems = e.raw(extra, KeyLineItems)
	e.VATBase = e.raw(extra, KeyVATBase)
	e.VATAmounts = e.raw(extra, KeyVATAmounts)

	e.TotalWithoutVAT = e.number(extra, KeyTotalWithoutVAT)
	e.Total = e.number(extra, KeyTotal)
	e.VATRate = e.number(extra, KeyVATRate)
	e.VAT = e.number(extra, KeyVAT)

	return e
}

func (e *Extracted) warn(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

func (e *Extracted) str(extra map[string]any, key string) string {
	switch v := extra[key].(type) {
	case nil:
		return ""
	case string:
		return clean(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		e.warn("%s: unsupported value type %T", key, v)
		return ""
	}
}

func (e *Extracted) number(extra map[string]any, key string) *decimal.Decimal {
	v, ok := extra[key]
	if !ok || v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}

	d, ok := dec.Coerce(v)
	if !ok {
		e.warn("%s: not a number: %v", key, v)
		return nil
	}
	return &d
}

func (e *Extracted) date(extra map[string]any, key string) *time.Time {
	switch v := extra[key].(type) {
	case nil:
		return nil
	case time.Time:
		d := truncateDate(v)
		return &d
	case *time.Time:
		if v == nil {
			return nil
		}
		d := truncateDate(*v)
		return &d
	case string:
		s := clean(v)
		if s == "" {
			return nil
		}
		if d, ok := ParseDate(s); ok {
			return &d
		}
		e.warn("%s: unrecognized date %q", key, s)
		return nil
	default:
		e.warn("%s: unsupported value type %T", key, v)
		return nil
	}
}

// raw keeps an encoded collection. Strings are taken as JSON text;
// maps and slices arrive already decoded and are re-encoded.
func (e *Extracted) raw(extra map[string]any, key string) json.RawMessage {
	switch v := extra[key].(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return json.RawMessage(s)
	case json.RawMessage:
		if len(v) == 0 {
			return nil
		}
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			e.warn("%s: cannot encode value: %v", key, err)
			return nil
		}
		return b
	}
}

// ParseDate parses a calendar date in any of the accepted layouts.
// The result carries no time component.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDate(t), true
		}
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
