package isdoc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/rezonia/isdoc-export/internal/isdoc"
)

func TestInspect(t *testing.T) {
	out, err := isdoc.Serialize(sampleInvoice())
	require.NoError(t, err)

	s, err := isdoc.Inspect(out)
	require.NoError(t, err)

	assert.Equal(t, "6.0.2", s.Version)
	assert.Equal(t, "FV-2024-001", s.ID)
	assert.Equal(t, "tx-123", s.UUID)
	assert.Equal(t, "2024-03-01", s.IssueDate)
	assert.Equal(t, "CZK", s.Currency)
	assert.Equal(t, "Dodavatel s.r.o.", s.SupplierName)
	assert.Equal(t, "12345678", s.SupplierID)
	assert.Equal(t, "Odběratel a.s.", s.CustomerName)
	assert.Equal(t, "00000000", s.CustomerID)
	assert.Equal(t, 2, s.LineCount)
	assert.Equal(t, []string{"12", "21"}, s.TaxRates)
	assert.Equal(t, "222.00", s.TotalVAT)
	assert.Equal(t, "1322.00", s.Payable)
	assert.Equal(t, "123456789/0100", s.BankAccount)
}

func TestInspect_NoPayment(t *testing.T) {
	inv := sampleInvoice()
	inv.Supplier.BankAccount = nil
	out, err := isdoc.Serialize(inv)
	require.NoError(t, err)

	s, err := isdoc.Inspect(out)
	require.NoError(t, err)
	assert.Empty(t, s.BankAccount)
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "<Invoice><ID>1</Invoice>"},
		{"not an invoice", `<?xml version="1.0"?><Order><ID>1</ID></Order>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := isdoc.Inspect([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestInspect_LegacyEncoding(t *testing.T) {
	doc := `<?xml version="1.0" encoding="windows-1250"?>` +
		`<Invoice xmlns="http://isdoc.cz/namespace/2013" version="6.0.2">` +
		`<ID>1</ID><AccountingSupplierParty><Party><PartyName><Name>Žluťoučký kůň s.r.o.</Name></PartyName></Party></AccountingSupplierParty>` +
		`</Invoice>`
	encoded, err := charmap.Windows1250.NewEncoder().String(doc)
	require.NoError(t, err)

	s, err := isdoc.Inspect([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, "Žluťoučký kůň s.r.o.", s.SupplierName)
	assert.Equal(t, 0, s.LineCount)
}
