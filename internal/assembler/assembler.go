// Package assembler builds the canonical invoice document from a transaction,
// its extracted attributes and the exporting user's profile.
package assembler

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rezonia/isdoc-export/internal/address"
	"github.com/rezonia/isdoc-export/internal/bank"
	dec "github.com/rezonia/isdoc-export/internal/decimal"
	"github.com/rezonia/isdoc-export/internal/fields"
	"github.com/rezonia/isdoc-export/internal/lineitem"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/payment"
	"github.com/rezonia/isdoc-export/internal/vat"
)

// Result holds the assembled invoice with recovered problems
type Result struct {
	Invoice  *model.Invoice
	Warnings []string
}

// Option configures an Assembler
type Option func(*Assembler)

// WithClock sets the clock used when the transaction has no issue date
func WithClock(c clockwork.Clock) Option {
	return func(a *Assembler) {
		a.clock = c
	}
}

// WithAddressParser replaces the default address heuristic
func WithAddressParser(p address.Parser) Option {
	return func(a *Assembler) {
		a.addresses = p
	}
}

// WithLogger sets the logger.
// It is handed down to the line-item normalizer and the VAT reconciler.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Assembler) {
		a.baseLogger = l
	}
}

// Assembler orchestrates the leaf components. It holds no per-call state
// and is safe for concurrent use.
type Assembler struct {
	clock      clockwork.Clock
	addresses  address.Parser
	baseLogger zerolog.Logger
	logger     zerolog.Logger
	items      *lineitem.Normalizer
	reconciler *vat.Reconciler
}

// New creates an assembler
func New(opts ...Option) *Assembler {
	a := &Assembler{
		clock:      clockwork.NewRealClock(),
		addresses:  address.NewHeuristic(),
		baseLogger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger = logger.WithComponent(a.baseLogger, "assembler")
	a.items = lineitem.NewNormalizer(lineitem.WithLogger(a.baseLogger))
	a.reconciler = vat.NewReconciler(vat.WithLogger(a.baseLogger))
	return a
}

// Assemble builds the invoice. It fails only when tx or profile is nil;
// missing optional data is defaulted and reported in Result.Warnings.
func (a *Assembler) Assemble(tx *model.Transaction, profile *model.Profile) (*Result, error) {
	if tx == nil {
		return nil, model.NewPreconditionError("transaction", "transaction is required")
	}
	if profile == nil {
		return nil, model.NewPreconditionError("profile", "user profile is required")
	}

	log := a.logger.With().Str(logger.FieldTransactionID, tx.ID).Logger()

	ex := fields.Parse(tx.Extra)
	warnings := append([]string(nil), ex.Warnings...)

	gross := dec.FromMinorUnits(tx.Total)
	if tx.Total == 0 && ex.Total != nil && dec.IsPositive(*ex.Total) {
		gross = *ex.Total
	}
	issueDate := a.issueDate(tx, ex)

	totals, vatWarnings := a.reconciler.Reconcile(vat.Input{
		Gross:           gross,
		Rate:            ex.VATRate,
		TotalWithoutVAT: ex.TotalWithoutVAT,
		VAT:             ex.VAT,
		Base:            ex.VATBase,
		Amounts:         ex.VATAmounts,
	})
	warnings = append(warnings, vatWarnings...)

	items, err := a.items.Normalize(ex.LineItems, lineitem.Fallback{
		Description: tx.Name,
		Gross:       gross,
		VATRate:     orZero(ex.VATRate),
		VATAmount:   orZero(ex.VAT),
	})
	if err != nil {
		warnings = append(warnings, err.Error())
	}

	inv := &model.Invoice{
		ID:           invoiceID(tx, ex),
		UUID:         tx.ID,
		IssueDate:    issueDate,
		TaxPointDate: ex.TaxDate,
		CurrencyCode: currency(tx.CurrencyCode),
		Supplier:     a.supplier(ex, profile),
		Customer:     a.customer(tx, ex),
		LineItems:    items,
		Totals:       totals,
		PaymentInfo:  paymentInfo(ex, issueDate),
	}

	if inv.Supplier.Name == "" {
		warnings = append(warnings, "supplier name is empty")
	}
	if inv.Supplier.IC == "" {
		warnings = append(warnings, "supplier IČ is empty")
	}

	log.Debug().
		Str(logger.FieldInvoiceID, inv.ID).
		Int(logger.FieldCount, len(inv.LineItems)).
		Bool("bank_account", inv.Supplier.BankAccount != nil).
		Msg("Assembled invoice")

	return &Result{Invoice: inv, Warnings: warnings}, nil
}

func (a *Assembler) issueDate(tx *model.Transaction, ex *fields.Extracted) time.Time {
	switch {
	case tx.IssuedAt != nil && !tx.IssuedAt.IsZero():
		return dateOnly(*tx.IssuedAt)
	case ex.IssuedAt != nil:
		return *ex.IssuedAt
	default:
		return dateOnly(a.clock.Now())
	}
}

func (a *Assembler) supplier(ex *fields.Extracted, profile *model.Profile) model.Party {
	party := model.Party{
		Name:    firstNonEmpty(ex.SupplierName, profile.BusinessName),
		IC:      firstNonEmpty(ex.SupplierIC, profile.BusinessIC),
		DIC:     firstNonEmpty(ex.SupplierDIC, profile.BusinessDIC),
		Address: a.parseAddress(firstNonEmpty(ex.SupplierAddress, profile.BusinessAddress)),
	}

	// Account number and bank code are taken as a pair from one source
	account, code := ex.SupplierBankAccount, ex.SupplierBankCode
	if account == "" {
		account, code = strings.TrimSpace(profile.BankAccount), strings.TrimSpace(profile.BankCode)
	}
	if account != "" && code == "" {
		account, code = bank.Split(account)
	}
	party.BankAccount = bank.Resolve(account, code)

	return party
}

func (a *Assembler) customer(tx *model.Transaction, ex *fields.Extracted) model.Party {
	return model.Party{
		Name:    firstNonEmpty(ex.CustomerName, strings.TrimSpace(tx.Merchant), model.UnknownCustomer),
		IC:      ex.CustomerIC,
		DIC:     ex.CustomerDIC,
		Address: a.parseAddress(ex.CustomerAddress),
	}
}

func (a *Assembler) parseAddress(raw string) model.Address {
	addr := a.addresses.Parse(raw)
	addr.Country = model.CountryName
	addr.CountryCode = model.CountryCode
	return addr
}

func paymentInfo(ex *fields.Extracted, issueDate time.Time) model.PaymentInfo {
	due := issueDate.AddDate(0, 0, model.PaymentTermDays)
	if ex.DueDate != nil {
		due = *ex.DueDate
	}

	return model.PaymentInfo{
		VariableSymbol:    firstNonEmpty(ex.VariableSymbol, ex.InvoiceNumber),
		ConstantSymbol:    ex.ConstantSymbol,
		SpecificSymbol:    ex.SpecificSymbol,
		DueDate:           due,
		PaymentMethod:     ex.PaymentMethod,
		PaymentMethodCode: payment.Classify(ex.PaymentMethod),
	}
}

func invoiceID(tx *model.Transaction, ex *fields.Extracted) string {
	if ex.InvoiceNumber != "" {
		return ex.InvoiceNumber
	}
	return "INV-" + tx.ID
}

func currency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return model.DefaultCurrency
	}
	return code
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return dec.Zero
	}
	return *d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
