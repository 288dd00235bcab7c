// Package bank resolves supplier bank account details.
package bank

import (
	"strings"

	"github.com/rezonia/isdoc-export/internal/model"
)

// Resolve builds a bank account from a local account number and bank code.
// Returns nil unless both are present. IBAN and BIC are never derived.
func Resolve(accountNumber, bankCode string) *model.BankAccount {
	accountNumber = strings.TrimSpace(accountNumber)
	bankCode = strings.TrimSpace(bankCode)
	if accountNumber == "" || bankCode == "" {
		return nil
	}

	return &model.BankAccount{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
	}
}

// Split separates the "number/code" notation, e.g. "19-2000145399/0800".
// Without a slash the input is returned as the account number.
func Split(account string) (accountNumber, bankCode string) {
	account = strings.TrimSpace(account)
	idx := strings.LastIndex(account, "/")
	if idx < 0 {
		return account, ""
	}
	return strings.TrimSpace(account[:idx]), strings.TrimSpace(account[idx+1:])
}
