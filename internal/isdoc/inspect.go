package isdoc

import (
	"bytes"
	"fmt"

	"gopkg.in/xmlpath.v2"
)

// Summary describes a rendered ISDOC document
type Summary struct {
	Version      string   `json:"version" yaml:"version"`
	ID           string   `json:"id" yaml:"id"`
	UUID         string   `json:"uuid" yaml:"uuid"`
	IssueDate    string   `json:"issue_date" yaml:"issue_date"`
	Currency     string   `json:"currency" yaml:"currency"`
	SupplierName string   `json:"supplier_name" yaml:"supplier_name"`
	SupplierID   string   `json:"supplier_id" yaml:"supplier_id"`
	CustomerName string   `json:"customer_name" yaml:"customer_name"`
	CustomerID   string   `json:"customer_id" yaml:"customer_id"`
	LineCount    int      `json:"line_count" yaml:"line_count"`
	TaxRates     []string `json:"tax_rates" yaml:"tax_rates"`
	TotalVAT     string   `json:"total_vat" yaml:"total_vat"`
	Payable      string   `json:"payable_amount" yaml:"payable_amount"`
	BankAccount  string   `json:"bank_account,omitempty" yaml:"bank_account,omitempty"`
}

var (
	pathVersion      = xmlpath.MustCompile("/Invoice/@version")
	pathID           = xmlpath.MustCompile("/Invoice/ID")
	pathUUID         = xmlpath.MustCompile("/Invoice/UUID")
	pathIssueDate    = xmlpath.MustCompile("/Invoice/IssueDate")
	pathCurrency     = xmlpath.MustCompile("/Invoice/LocalCurrencyCode")
	pathSupplierName = xmlpath.MustCompile("/Invoice/AccountingSupplierParty/Party/PartyName/Name")
	pathSupplierID   = xmlpath.MustCompile("/Invoice/AccountingSupplierParty/Party/PartyIdentification/ID")
	pathCustomerName = xmlpath.MustCompile("/Invoice/AccountingCustomerParty/Party/PartyName/Name")
	pathCustomerID   = xmlpath.MustCompile("/Invoice/AccountingCustomerParty/Party/PartyIdentification/ID")
	pathLines        = xmlpath.MustCompile("/Invoice/InvoiceLines/InvoiceLine")
	pathRates        = xmlpath.MustCompile("/Invoice/TaxTotal/TaxSubTotal/TaxCategory/Percent")
	pathTotalVAT     = xmlpath.MustCompile("/Invoice/TaxTotal/TaxAmount")
	pathPayable      = xmlpath.MustCompile("/Invoice/LegalMonetaryTotal/PayableAmount")
	pathAccount      = xmlpath.MustCompile("/Invoice/PaymentMeans/Payment/Details/ID")
	pathBankCode     = xmlpath.MustCompile("/Invoice/PaymentMeans/Payment/Details/BankCode")
)

// Inspect reads the headline fields of an ISDOC document
func Inspect(content []byte) (*Summary, error) {
	root, err := xmlpath.ParseDecoder(NewDecoder(bytes.NewReader(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ISDOC document: %w", err)
	}

	if _, ok := pathID.String(root); !ok {
		return nil, fmt.Errorf("not an ISDOC invoice: missing /Invoice/ID")
	}

	s := &Summary{
		Version:      value(pathVersion, root),
		ID:           value(pathID, root),
		UUID:         value(pathUUID, root),
		IssueDate:    value(pathIssueDate, root),
		Currency:     value(pathCurrency, root),
		SupplierName: value(pathSupplierName, root),
		SupplierID:   value(pathSupplierID, root),
		CustomerName: value(pathCustomerName, root),
		CustomerID:   value(pathCustomerID, root),
		TaxRates:     []string{},
		TotalVAT:     value(pathTotalVAT, root),
		Payable:      value(pathPayable, root),
	}

	iter := pathLines.Iter(root)
	for iter.Next() {
		s.LineCount++
	}

	iter = pathRates.Iter(root)
	for iter.Next() {
		s.TaxRates = append(s.TaxRates, iter.Node().String())
	}

	if account := value(pathAccount, root); account != "" {
		s.BankAccount = account
		if code := value(pathBankCode, root); code != "" {
			s.BankAccount += "/" + code
		}
	}

	return s, nil
}

func value(path *xmlpath.Path, root *xmlpath.Node) string {
	v, _ := path.String(root)
	return v
}
