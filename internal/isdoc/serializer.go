// Package isdoc renders invoices as ISDOC 6.0.2 XML and reads them back.
package isdoc

import (
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	dec "github.com/rezonia/isdoc-export/internal/decimal"
	"github.com/rezonia/isdoc-export/internal/model"
)

// ISDOC document constants
const (
	Namespace      = "http://isdoc.cz/namespace/2013"
	XSINamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	SchemaLocation = Namespace + " " + Namespace + "/isdoc-invoice-6.0.2.xsd"
	Version        = "6.0.2"

	// FileExtension is appended to exported file names
	FileExtension = ".isdoc"

	DocumentTypeInvoice  = "1"
	AgreementReference   = "Příjemce souhlasí s elektronickou formou faktury"
	PaymentMeansTransfer = "42"
	TaxSchemeVAT         = "VAT"

	// VATCalculationMethodBottomUp computes VAT from line totals
	VATCalculationMethodBottomUp = "0"

	// DefaultCustomerID stands in for a customer without IČ
	DefaultCustomerID = "00000000"

	dateLayout = "2006-01-02"
)

// Serializer renders invoices. Output is deterministic for a given invoice.
type Serializer struct {
	indent int
}

// SerializerOption configures a Serializer
type SerializerOption func(*Serializer)

// WithIndent sets the number of spaces per nesting level; negative disables indentation
func WithIndent(spaces int) SerializerOption {
	return func(s *Serializer) {
		s.indent = spaces
	}
}

// NewSerializer creates a serializer with two-space indentation
func NewSerializer(opts ...SerializerOption) *Serializer {
	s := &Serializer{indent: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize renders inv in schema element order
func (s *Serializer) Serialize(inv *model.Invoice) ([]byte, error) {
	doc := s.Document(inv)
	if s.indent >= 0 {
		doc.Indent(s.indent)
	}
	return doc.WriteToBytes()
}

// Serialize renders inv with the default serializer
func Serialize(inv *model.Invoice) ([]byte, error) {
	return NewSerializer().Serialize(inv)
}

// Document builds the element tree for inv
func (s *Serializer) Document(inv *model.Invoice) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("xmlns:xsi", XSINamespace)
	root.CreateAttr("xsi:schemaLocation", SchemaLocation)
	root.CreateAttr("version", Version)

	text(root, "DocumentType", DocumentTypeInvoice)
	text(root, "ID", inv.ID)
	text(root, "UUID", inv.UUID)
	text(root, "IssueDate", date(inv.IssueDate))
	if inv.TaxPointDate != nil {
		text(root, "TaxPointDate", date(*inv.TaxPointDate))
	}
	text(root, "VATApplicable", "true")
	text(root, "ElectronicPossibilityAgreementReference", AgreementReference)

	text(root, "LocalCurrencyCode", inv.CurrencyCode)
	text(root, "CurrRate", "1")
	text(root, "RefCurrRate", "1")

	writeParty(root.CreateElement("AccountingSupplierParty"), inv.Supplier, inv.Supplier.IC)
	writeParty(root.CreateElement("AccountingCustomerParty"), inv.Customer, orDefault(inv.Customer.IC, DefaultCustomerID))

	writeLines(root.CreateElement("InvoiceLines"), inv.LineItems)
	writeTaxTotal(root.CreateElement("TaxTotal"), inv.Totals)
	writeMonetaryTotal(root.CreateElement("LegalMonetaryTotal"), inv.Totals)

	if inv.Supplier.BankAccount != nil {
		writePaymentMeans(root.CreateElement("PaymentMeans"), inv)
	}

	return doc
}

func writeParty(parent *etree.Element, p model.Party, id string) {
	party := parent.CreateElement("Party")

	text(party.CreateElement("PartyIdentification"), "ID", id)
	text(party.CreateElement("PartyName"), "Name", p.Name)

	addr := party.CreateElement("PostalAddress")
	text(addr, "StreetName", p.Address.Street)
	text(addr, "BuildingNumber", p.Address.BuildingNumber)
	text(addr, "CityName", p.Address.City)
	text(addr, "PostalZone", p.Address.PostalCode)
	country := addr.CreateElement("Country")
	text(country, "IdentificationCode", p.Address.CountryCode)
	text(country, "Name", p.Address.Country)

	if p.DIC != "" {
		scheme := party.CreateElement("PartyTaxScheme")
		text(scheme, "CompanyID", p.DIC)
		text(scheme, "TaxScheme", TaxSchemeVAT)
	}
}

func writeLines(parent *etree.Element, items []model.LineItem) {
	for i, item := range items {
		line := parent.CreateElement("InvoiceLine")
		text(line, "ID", itoa(i+1))

		if !item.Quantity.IsZero() {
			qty := line.CreateElement("InvoicedQuantity")
			qty.CreateAttr("unitCode", orDefault(item.Unit, model.DefaultUnit))
			qty.SetText(item.Quantity.String())
		}

		money(line, "LineExtensionAmount", item.TotalPrice)
		money(line, "LineExtensionAmountTaxInclusive", item.TaxInclusiveAmount())
		money(line, "LineExtensionTaxAmount", item.VATAmount)
		money(line, "UnitPrice", item.UnitPrice)
		money(line, "UnitPriceTaxInclusive", item.UnitPriceTaxInclusive())

		category := line.CreateElement("ClassifiedTaxCategory")
		text(category, "Percent", dec.FormatRate(item.VATRate))
		text(category, "VATCalculationMethod", VATCalculationMethodBottomUp)

		text(line.CreateElement("Item"), "Description", item.Description)
	}
}

func writeTaxTotal(parent *etree.Element, totals model.Totals) {
	for _, rate := range totals.Rates() {
		amounts := totals.VATBreakdown[rate]
		sub := parent.CreateElement("TaxSubTotal")

		money(sub, "TaxableAmount", amounts.Base)
		money(sub, "TaxAmount", amounts.Amount)
		money(sub, "TaxInclusiveAmount", amounts.TaxInclusive())
		text(sub, "AlreadyClaimedTaxableAmount", "0")
		text(sub, "AlreadyClaimedTaxAmount", "0")
		text(sub, "AlreadyClaimedTaxInclusiveAmount", "0")
		money(sub, "DifferenceTaxableAmount", amounts.Base)
		money(sub, "DifferenceTaxAmount", amounts.Amount)
		money(sub, "DifferenceTaxInclusiveAmount", amounts.TaxInclusive())

		text(sub.CreateElement("TaxCategory"), "Percent", rate)
	}

	money(parent, "TaxAmount", totals.TotalVAT)
}

func writeMonetaryTotal(parent *etree.Element, totals model.Totals) {
	money(parent, "TaxExclusiveAmount", totals.TotalWithoutVAT)
	money(parent, "TaxInclusiveAmount", totals.TotalWithVAT)
	text(parent, "AlreadyClaimedTaxExclusiveAmount", "0")
	text(parent, "AlreadyClaimedTaxInclusiveAmount", "0")
	money(parent, "DifferenceTaxExclusiveAmount", totals.TotalWithoutVAT)
	money(parent, "DifferenceTaxInclusiveAmount", totals.TotalWithVAT)
	text(parent, "PaidDepositsAmount", "0")
	money(parent, "PayableAmount", totals.TotalWithVAT)
}

func writePaymentMeans(parent *etree.Element, inv *model.Invoice) {
	acc := inv.Supplier.BankAccount
	pay := parent.CreateElement("Payment")

	money(pay, "PaidAmount", inv.Totals.TotalWithVAT)
	text(pay, "PaymentMeansCode", PaymentMeansTransfer)

	details := pay.CreateElement("Details")
	text(details, "PaymentDueDate", date(inv.PaymentInfo.DueDate))
	text(details, "ID", acc.AccountNumber)
	text(details, "BankCode", acc.BankCode)
	text(details, "Name", inv.Supplier.Name)
	optional(details, "IBAN", acc.IBAN)
	optional(details, "BIC", acc.BIC)
	optional(details, "VariableSymbol", inv.PaymentInfo.VariableSymbol)
	optional(details, "ConstantSymbol", inv.PaymentInfo.ConstantSymbol)
	optional(details, "SpecificSymbol", inv.PaymentInfo.SpecificSymbol)
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

func optional(parent *etree.Element, tag, value string) {
	if value != "" {
		text(parent, tag, value)
	}
}

func money(parent *etree.Element, tag string, amount decimal.Decimal) {
	text(parent, tag, dec.Format2(amount))
}

func date(t time.Time) string {
	return t.Format(dateLayout)
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func itoa(i int) string {
	return decimal.NewFromInt(int64(i)).String()
}
