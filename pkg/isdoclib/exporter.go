package isdoclib

import (
	"context"
	"time"

	"github.com/rezonia/isdoc-export/internal/config"
	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/schema"
	"github.com/rezonia/isdoc-export/internal/validator"
)

// Options configures an Exporter
type Options struct {
	// Concurrency is the number of batch workers (default: 1)
	Concurrency int

	// SchemaValidation adds the XSD check after the structural one
	SchemaValidation bool
	SchemaURL        string        // default: the published 6.0.2 schema
	SchemaTimeout    time.Duration // default: 30s
}

// DefaultOptions returns the default exporter options
func DefaultOptions() Options {
	return Options{
		Concurrency:   1,
		SchemaURL:     config.DefaultSchemaURL,
		SchemaTimeout: 30 * time.Second,
	}
}

// Exporter renders and validates ISDOC documents
type Exporter struct {
	exporter *export.Exporter
	options  Options
}

// NewExporter creates an exporter with the given options
func NewExporter(opts Options) *Exporter {
	var v validator.Validator = validator.NewStructural()
	if opts.SchemaValidation {
		cache := schema.NewCache(schema.NewHTTPFetcher(opts.SchemaURL, opts.SchemaTimeout))
		v = validator.NewChain(v, validator.NewSchema(cache))
	}

	return &Exporter{
		exporter: export.New(
			export.WithValidator(v),
			export.WithConcurrency(opts.Concurrency),
		),
		options: opts,
	}
}

// NewDefaultExporter creates an exporter with default options
func NewDefaultExporter() *Exporter {
	return NewExporter(DefaultOptions())
}

// Export renders one transaction. A document that fails validation is
// returned together with a *StructuralViolation.
func (e *Exporter) Export(ctx context.Context, tx *Transaction, profile *Profile) (*Result, error) {
	return e.exporter.Export(ctx, tx, profile)
}

// ExportBatch renders every transaction; failures are collected per item
func (e *Exporter) ExportBatch(ctx context.Context, txs []*Transaction, profile *Profile) (*BatchResult, error) {
	return e.exporter.ExportBatch(ctx, txs, profile)
}

// Validate runs the structural checks on an existing document
func Validate(content []byte) *ValidationResult {
	return validator.NewStructural().Check(content)
}

// Inspect summarizes an existing document
func Inspect(content []byte) (*Summary, error) {
	return isdoc.Inspect(content)
}
