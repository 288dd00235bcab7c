package validator

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"

	"github.com/rezonia/isdoc-export/internal/isdoc"
)

// RequiredElements must appear as literal opening tags in every document
var RequiredElements = []string{
	"DocumentType",
	"ID",
	"UUID",
	"IssueDate",
	"VATApplicable",
	"ElectronicPossibilityAgreementReference",
	"LocalCurrencyCode",
	"CurrRate",
	"RefCurrRate",
	"AccountingSupplierParty",
	"AccountingCustomerParty",
	"InvoiceLines",
	"TaxTotal",
	"LegalMonetaryTotal",
}

// Structural messages
const (
	MsgMissingElement = "Missing required element: %s"
	MsgBadVersion     = "Invalid or missing ISDOC version attribute"
	MsgBadNamespace   = "Invalid or missing ISDOC namespace"
	MsgNoRoot         = "Document has no root element"
	MsgMultipleRoots  = "Document has more than one root element"
)

var (
	versionAttr   = []byte(`version="` + isdoc.Version + `"`)
	namespaceAttr = []byte(`xmlns="` + isdoc.Namespace + `"`)
)

// Structural is the shallow check: well-formedness, then literal tag and
// attribute presence. An empty element written as <Tag/> does not count.
type Structural struct{}

// NewStructural creates the structural validator
func NewStructural() *Structural {
	return &Structural{}
}

// Name implements Validator
func (Structural) Name() string {
	return "structural"
}

// Validate implements Validator. It never returns an error.
func (s Structural) Validate(_ context.Context, content []byte) (*Result, error) {
	return s.Check(content), nil
}

// Check runs the structural validation
func (s Structural) Check(content []byte) *Result {
	result := NewResult(s.Name())

	if err := wellFormed(content); err != nil {
		result.AddError("%s", err.Error())
		return result
	}

	for _, tag := range RequiredElements {
		if !bytes.Contains(content, []byte("<"+tag+">")) {
			result.AddError(MsgMissingElement, tag)
		}
	}
	if !bytes.Contains(content, versionAttr) {
		result.AddError(MsgBadVersion)
	}
	if !bytes.Contains(content, namespaceAttr) {
		result.AddError(MsgBadNamespace)
	}

	return result
}

// wellFormed streams the document through a strict decoder, which checks
// tag nesting and matching as it goes
func wellFormed(content []byte) error {
	d := isdoc.NewDecoder(bytes.NewReader(content))
	roots := 0
	depth := 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	switch {
	case roots == 0:
		return errors.New(MsgNoRoot)
	case roots > 1:
		return errors.New(MsgMultipleRoots)
	}
	return nil
}
