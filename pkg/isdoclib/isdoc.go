// Package isdoclib provides a public API for exporting transactions as
// Czech ISDOC 6.0.2 e-invoices.
//
// Example usage:
//
//	exporter := isdoclib.NewExporter(isdoclib.DefaultOptions())
//	res, err := exporter.Export(ctx, tx, profile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(res.File.FileName, res.File.Content, 0o644)
package isdoclib

import (
	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/validator"
)

// Re-export core types for public API
type (
	Transaction = model.Transaction
	Profile     = model.Profile
	Invoice     = model.Invoice
	Party       = model.Party
	LineItem    = model.LineItem
	Totals      = model.Totals

	Result      = export.Result
	File        = export.File
	Failure     = export.Failure
	BatchResult = export.BatchResult

	ValidationResult = validator.Result
	Summary          = isdoc.Summary
)

// Re-export error types
type (
	DecodeError         = model.DecodeError
	PreconditionError   = model.PreconditionError
	StructuralViolation = model.StructuralViolation
)

// Re-export batch errors
var (
	ErrNoTransactions = model.ErrNoTransactions
	ErrNoExports      = model.ErrNoExports
)

// Version is the ISDOC version of every produced document
const Version = isdoc.Version
