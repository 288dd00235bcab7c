// Package payment maps free-text payment methods to ISDOC payment means codes.
package payment

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Payment means codes
const (
	CodeCash           = "10"
	CodeCheque         = "20"
	CodeTransfer       = "42"
	CodeCard           = "48"
	CodeDirectDebit    = "49"
	CodeCashOnDelivery = "50"
	CodeComposition    = "97"

	// CodeDefault is used when nothing matches
	CodeDefault = CodeTransfer
)

type rule struct {
	keyword string
	code    string
}

// Priority order, first match wins
var rules = []rule{
	{"cash", CodeCash},
	{"hotově", CodeCash},
	{"check", CodeCheque},
	{"šek", CodeCheque},
	{"transfer", CodeTransfer},
	{"převod", CodeTransfer},
	{"příkazem", CodeTransfer},
	{"card", CodeCard},
	{"karta", CodeCard},
	{"kartou", CodeCard},
	{"debit", CodeDirectDebit},
	{"inkaso", CodeDirectDebit},
	{"cod", CodeCashOnDelivery},
	{"dobírka", CodeCashOnDelivery},
	{"composition", CodeComposition},
	{"zaúčtování", CodeComposition},
}

// Classify returns the payment means code for a description.
// Matching is case-insensitive substring containment.
func Classify(method string) string {
	text := fold(method)
	if text == "" {
		return CodeDefault
	}

	for _, r := range rules {
		if strings.Contains(text, fold(r.keyword)) {
			return r.code
		}
	}
	return CodeDefault
}

// Casers are stateful, so each call gets its own
func fold(s string) string {
	return norm.NFC.String(cases.Fold().String(norm.NFC.String(s)))
}
