package fields_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/isdoc-export/internal/fields"
)

func TestParse_Nil(t *testing.T) {
	e := fields.Parse(nil)
	require.NotNil(t, e)
	assert.Empty(t, e.InvoiceNumber)
	assert.Nil(t, e.LineItems)
	assert.Nil(t, e.Total)
	assert.Empty(t, e.Warnings)
}

func TestParse_Strings(t *testing.T) {
	e := fields.Parse(map[string]any{
		fields.KeyInvoiceNumber:  "  FV-2024-001 ",
		fields.KeyVariableSymbol: json.Number("2024001"),
		fields.KeySupplierIC:     float64(12345678),
		fields.KeySupplierName:   "Dodavatel s.r.o.",
		fields.KeyCustomerDIC:    "",
		fields.KeyPaymentMethod:  "Příkazem",
	})

	assert.Equal(t, "FV-2024-001", e.InvoiceNumber)
	assert.Equal(t, "2024001", e.VariableSymbol)
	assert.Equal(t, "12345678", e.SupplierIC)
	assert.Equal(t, "Dodavatel s.r.o.", e.SupplierName)
	assert.Empty(t, e.CustomerDIC)
	assert.Equal(t, "Příkazem", e.PaymentMethod)
	assert.Empty(t, e.Warnings)
}

func TestParse_NormalizesUnicode(t *testing.T) {
	// "Příkazem" with a combining caron
	e := fields.Parse(map[string]any{fields.KeyPaymentMethod: "Pr\u030ci\u0301kazem"})
	assert.Equal(t, "Příkazem", e.PaymentMethod)
}

func TestParse_Numbers(t *testing.T) {
	e := fields.Parse(map[string]any{
		fields.KeyTotalWithoutVAT: "1 000,00",
		fields.KeyTotal:           1210.0,
		fields.KeyVATRate:         "21",
		fields.KeyVAT:             "   ",
	})

	require.NotNil(t, e.TotalWithoutVAT)
	assert.True(t, e.TotalWithoutVAT.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, e.Total)
	assert.True(t, e.Total.Equal(decimal.NewFromInt(1210)))
	require.NotNil(t, e.VATRate)
	assert.True(t, e.VATRate.Equal(decimal.NewFromInt(21)))
	assert.Nil(t, e.VAT)
}

func TestParse_BadNumberWarns(t *testing.T) {
	e := fields.Parse(map[string]any{fields.KeyVAT: "n/a"})

	assert.Nil(t, e.VAT)
	require.Len(t, e.Warnings, 1)
	assert.Contains(t, e.Warnings[0], fields.KeyVAT)
}

func TestParse_Dates(t *testing.T) {
	issued := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	e := fields.Parse(map[string]any{
		fields.KeyIssuedAt: issued,
		fields.KeyDueDate:  "15.03.2024",
		fields.KeyTaxDate:  "2024-03-01",
	})

	require.NotNil(t, e.IssuedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *e.IssuedAt)
	require.NotNil(t, e.DueDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *e.DueDate)
	require.NotNil(t, e.TaxDate)
	assert.Equal(t, "2024-03-01", e.TaxDate.Format("2006-01-02"))
}

func TestParse_BadDateWarns(t *testing.T) {
	e := fields.Parse(map[string]any{fields.KeyTaxDate: "yesterday"})

	assert.Nil(t, e.TaxDate)
	require.Len(t, e.Warnings, 1)
	assert.Contains(t, e.Warnings[0], "yesterday")
}

func TestParse_Collections(t *testing.T) {
	e := fields.Parse(map[string]any{
		fields.KeyLineItems:  `[{"description":"A"}]`,
		fields.KeyVATBase:    map[string]any{"21": 100.0},
		fields.KeyVATAmounts: "",
	})

	assert.JSONEq(t, `[{"description":"A"}]`, string(e.LineItems))
	assert.JSONEq(t, `{"21":100}`, string(e.VATBase))
	assert.Nil(t, e.VATAmounts)
}

func TestParse_MalformedCollectionKeptRaw(t *testing.T) {
	e := fields.Parse(map[string]any{fields.KeyLineItems: "[{not json"})

	// decoding is the normalizer's job
	assert.Equal(t, "[{not json", string(e.LineItems))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"2024-01-15", "2024-01-15", true},
		{"2024-01-15T10:00:00Z", "2024-01-15", true},
		{"15.01.2024", "2024-01-15", true},
		{"5.1.2024", "2024-01-05", true},
		{"5. 1. 2024", "2024-01-05", true},
		{"", "", false},
		{"Jan 15", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := fields.ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}
}
