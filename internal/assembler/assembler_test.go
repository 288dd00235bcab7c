package assembler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/isdoc-export/internal/address"
	"github.com/rezonia/isdoc-export/internal/assembler"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/payment"
)

var now = time.Date(2024, 5, 20, 13, 45, 0, 0, time.UTC)

func newAssembler(opts ...assembler.Option) *assembler.Assembler {
	opts = append([]assembler.Option{assembler.WithClock(clockwork.NewFakeClockAt(now))}, opts...)
	return assembler.New(opts...)
}

func testProfile() *model.Profile {
	return &model.Profile{
		BusinessName:    "Moje Firma s.r.o.",
		BusinessAddress: "Dlouhá 12, 110 00 Praha 1",
		BusinessIC:      "27082440",
		BusinessDIC:     "CZ27082440",
		BankAccount:     "2000145399",
		BankCode:        "0800",
	}
}

func fullTransaction() *model.Transaction {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.Transaction{
		ID:           "tx-100",
		Name:         "Vývoj software",
		Merchant:     "Zákazník a.s.",
		Total:        121000,
		CurrencyCode: "czk",
		IssuedAt:     &issued,
		Extra: map[string]any{
			"invoice_number":        "FV-2024-042",
			"constant_symbol":       "0308",
			"specific_symbol":       "77",
			"due_date":              "2024-03-31",
			"tax_date":              "2024-02-29",
			"supplier_name":         "Dodavatel s.r.o.",
			"supplier_address":      "Vinohradská 1245/53, 120 00 Praha 2",
			"supplier_ic":           "12345678",
			"supplier_dic":          "CZ12345678",
			"supplier_bank_account": "19-2000145399",
			"supplier_bank_code":    "0100",
			"customer_name":         "Odběratel s.r.o.",
			"customer_address":      "Masarykova 5, 602 00 Brno",
			"customer_ic":           "87654321",
			"customer_dic":          "CZ87654321",
			"payment_method":        "Převodem",
			"line_items":            `[{"code":"A1","description":"Analýza","quantity":10,"unit":"hod","unit_price":1000,"total":10000,"vat_rate":21,"vat_amount":2100}]`,
			"total_without_vat":     "1000",
			"vat":                   "210",
			"vat_rate":              "21",
			"total_vat_base":        `{"21": 1000}`,
			"total_vat_amounts":     `{"21": 210}`,
		},
	}
}

func TestAssemble_Preconditions(t *testing.T) {
	a := newAssembler()

	_, err := a.Assemble(nil, testProfile())
	var precondition *model.PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, "transaction", precondition.Input)

	_, err = a.Assemble(&model.Transaction{ID: "tx"}, nil)
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, "profile", precondition.Input)
}

func TestAssemble_FullyPopulated(t *testing.T) {
	res, err := newAssembler().Assemble(fullTransaction(), testProfile())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	inv := res.Invoice
	assert.Equal(t, "FV-2024-042", inv.ID)
	assert.Equal(t, "tx-100", inv.UUID)
	assert.Equal(t, "2024-03-01", inv.IssueDate.Format("2006-01-02"))
	require.NotNil(t, inv.TaxPointDate)
	assert.Equal(t, "2024-02-29", inv.TaxPointDate.Format("2006-01-02"))
	assert.Equal(t, "CZK", inv.CurrencyCode)

	// extracted supplier wins over profile
	assert.Equal(t, "Dodavatel s.r.o.", inv.Supplier.Name)
	assert.Equal(t, "12345678", inv.Supplier.IC)
	assert.Equal(t, "CZ12345678", inv.Supplier.DIC)
	assert.Equal(t, model.Address{
		Street: "Vinohradská", BuildingNumber: "1245/53", PostalCode: "120 00", City: "Praha 2",
		Country: model.CountryName, CountryCode: model.CountryCode,
	}, inv.Supplier.Address)
	require.NotNil(t, inv.Supplier.BankAccount)
	assert.Equal(t, "19-2000145399", inv.Supplier.BankAccount.AccountNumber)
	assert.Equal(t, "0100", inv.Supplier.BankAccount.BankCode)

	assert.Equal(t, "Odběratel s.r.o.", inv.Customer.Name)
	assert.Equal(t, "87654321", inv.Customer.IC)
	assert.Equal(t, "Brno", inv.Customer.Address.City)
	assert.Equal(t, model.CountryCode, inv.Customer.Address.CountryCode)

	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "A1", inv.LineItems[0].ID)
	assert.Equal(t, "hod", inv.LineItems[0].Unit)

	assert.Equal(t, "1000.00", inv.Totals.TotalWithoutVAT.StringFixed(2))
	assert.Equal(t, "210.00", inv.Totals.TotalVAT.StringFixed(2))
	assert.Equal(t, "1210.00", inv.Totals.TotalWithVAT.StringFixed(2))

	assert.Equal(t, "FV-2024-042", inv.PaymentInfo.VariableSymbol, "falls back to invoice number")
	assert.Equal(t, "0308", inv.PaymentInfo.ConstantSymbol)
	assert.Equal(t, "77", inv.PaymentInfo.SpecificSymbol)
	assert.Equal(t, "2024-03-31", inv.PaymentInfo.DueDate.Format("2006-01-02"))
	assert.Equal(t, payment.CodeTransfer, inv.PaymentInfo.PaymentMethodCode)
}

func TestAssemble_Minimal(t *testing.T) {
	tx := &model.Transaction{
		ID:    "tx-7",
		Name:  "Nákup",
		Total: 12100,
		Extra: map[string]any{"vat_rate": 21},
	}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	inv := res.Invoice

	assert.Equal(t, "INV-tx-7", inv.ID)
	assert.Equal(t, model.DefaultCurrency, inv.CurrencyCode)
	assert.Nil(t, inv.TaxPointDate)

	// issue date from the clock, due date 14 days later
	assert.Equal(t, "2024-05-20", inv.IssueDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-03", inv.PaymentInfo.DueDate.Format("2006-01-02"))

	// supplier from profile
	assert.Equal(t, "Moje Firma s.r.o.", inv.Supplier.Name)
	assert.Equal(t, "27082440", inv.Supplier.IC)
	assert.Equal(t, "Dlouhá", inv.Supplier.Address.Street)
	require.NotNil(t, inv.Supplier.BankAccount)
	assert.Equal(t, "2000145399", inv.Supplier.BankAccount.AccountNumber)
	assert.Equal(t, "0800", inv.Supplier.BankAccount.BankCode)

	// customer defaults
	assert.Equal(t, model.UnknownCustomer, inv.Customer.Name)
	assert.Empty(t, inv.Customer.IC)
	assert.Empty(t, inv.Customer.DIC)
	assert.Equal(t, model.CountryName, inv.Customer.Address.Country)

	// synthesized line
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "Nákup", inv.LineItems[0].Description)
	assert.Equal(t, "100.00", inv.LineItems[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "100.00", inv.LineItems[0].TotalPrice.StringFixed(2))

	assert.Equal(t, "100.00", inv.Totals.TotalWithoutVAT.StringFixed(2))
	assert.Equal(t, "21.00", inv.Totals.TotalVAT.StringFixed(2))
	_, ok := inv.Totals.VATBreakdown["21"]
	assert.True(t, ok)

	assert.Empty(t, inv.PaymentInfo.VariableSymbol)
	assert.Equal(t, payment.CodeDefault, inv.PaymentInfo.PaymentMethodCode)
}

func TestAssemble_GrossFromExtractedTotal(t *testing.T) {
	tx := &model.Transaction{
		ID:    "tx-8",
		Name:  "Nákup",
		Extra: map[string]any{"vat_rate": 21, "total": "242"},
	}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, "242.00", res.Invoice.Totals.TotalWithVAT.StringFixed(2))
	assert.Equal(t, "200.00", res.Invoice.Totals.TotalWithoutVAT.StringFixed(2))
	require.Len(t, res.Invoice.LineItems, 1)
	assert.Equal(t, "200.00", res.Invoice.LineItems[0].TotalPrice.StringFixed(2))

	// the stored amount wins over the extracted one
	tx.Total = 12100
	res, err = newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, "121.00", res.Invoice.Totals.TotalWithVAT.StringFixed(2))
}

func TestAssemble_CustomerFallsBackToMerchant(t *testing.T) {
	tx := &model.Transaction{ID: "tx-1", Merchant: "Alza.cz a.s."}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, "Alza.cz a.s.", res.Invoice.Customer.Name)
}

func TestAssemble_NoBankAccount(t *testing.T) {
	profile := testProfile()
	profile.BankAccount = ""

	res, err := newAssembler().Assemble(&model.Transaction{ID: "tx-1"}, profile)
	require.NoError(t, err)
	assert.Nil(t, res.Invoice.Supplier.BankAccount)
}

func TestAssemble_BankAccountWithSlash(t *testing.T) {
	tx := &model.Transaction{
		ID:    "tx-1",
		Extra: map[string]any{"supplier_bank_account": "123456789/0300"},
	}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	require.NotNil(t, res.Invoice.Supplier.BankAccount)
	assert.Equal(t, "123456789", res.Invoice.Supplier.BankAccount.AccountNumber)
	assert.Equal(t, "0300", res.Invoice.Supplier.BankAccount.BankCode)
}

func TestAssemble_ExplicitVariableSymbol(t *testing.T) {
	tx := &model.Transaction{
		ID: "tx-1",
		Extra: map[string]any{
			"invoice_number":  "FV-1",
			"variable_symbol": "20240001",
		},
	}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, "20240001", res.Invoice.PaymentInfo.VariableSymbol)
}

func TestAssemble_MalformedLineItems(t *testing.T) {
	tx := &model.Transaction{
		ID:    "tx-1",
		Total: 10000,
		Extra: map[string]any{"line_items": "[{oops"},
	}

	res, err := newAssembler().Assemble(tx, testProfile())
	require.NoError(t, err)
	assert.Empty(t, res.Invoice.LineItems)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "line_items")
}

func TestAssemble_CustomAddressParser(t *testing.T) {
	parser := address.Func(func(raw string) model.Address {
		return model.Address{Street: "parsed:" + raw}
	})

	tx := &model.Transaction{ID: "tx-1", Extra: map[string]any{"customer_address": "anything"}}
	res, err := newAssembler(assembler.WithAddressParser(parser)).Assemble(tx, testProfile())
	require.NoError(t, err)

	assert.Equal(t, "parsed:anything", res.Invoice.Customer.Address.Street)
	// country is still forced
	assert.Equal(t, model.CountryCode, res.Invoice.Customer.Address.CountryCode)
}

func TestAssemble_TotalsInvariant(t *testing.T) {
	amounts := []int64{0, 1, 999, 12100, 5000050}
	rates := []any{nil, 0, 10, 12, 15, 21, "21 %"}

	a := newAssembler()
	for _, amount := range amounts {
		for _, rate := range rates {
			tx := &model.Transaction{ID: "tx", Total: amount, Extra: map[string]any{"vat_rate": rate}}
			res, err := a.Assemble(tx, testProfile())
			require.NoError(t, err)

			totals := res.Invoice.Totals
			diff := totals.TotalWithoutVAT.Add(totals.TotalVAT).Sub(totals.TotalWithVAT).Abs()
			assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")), "amount=%d rate=%v", amount, rate)

			for key, entry := range totals.VATBreakdown {
				assert.False(t, entry.Base.IsNegative(), "rate %s", key)
				assert.False(t, entry.Amount.IsNegative(), "rate %s", key)
			}
		}
	}
}

func TestAssemble_WarnsOnMissingSupplier(t *testing.T) {
	res, err := newAssembler().Assemble(&model.Transaction{ID: "tx"}, &model.Profile{})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "supplier name is empty")
}
