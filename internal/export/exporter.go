// Package export runs the full pipeline for single and batch exports:
// assemble, render, validate.
package export

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/rezonia/isdoc-export/internal/assembler"
	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/metrics"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/validator"
)

// FilePrefix starts every exported file name
const FilePrefix = "invoice_"

// File is one rendered document
type File struct {
	FileName      string `json:"file_name" yaml:"file_name"`
	TransactionID string `json:"transaction_id" yaml:"transaction_id"`
	InvoiceID     string `json:"invoice_id" yaml:"invoice_id"`
	Content       []byte `json:"content" yaml:"-"`
}

// Result is the outcome of a single export
type Result struct {
	File       File              `json:"file"`
	Invoice    *model.Invoice    `json:"invoice"`
	Validation *validator.Result `json:"validation"`
	Warnings   []string          `json:"warnings,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Option configures an Exporter
type Option func(*Exporter)

// WithAssembler replaces the default assembler
func WithAssembler(a *assembler.Assembler) Option {
	return func(e *Exporter) {
		e.assembler = a
	}
}

// WithSerializer replaces the default serializer
func WithSerializer(s *isdoc.Serializer) Option {
	return func(e *Exporter) {
		e.serializer = s
	}
}

// WithValidator replaces the structural validator
func WithValidator(v validator.Validator) Option {
	return func(e *Exporter) {
		e.validator = v
	}
}

// WithMetrics records export outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Exporter) {
		e.baseLogger = l
	}
}

// WithConcurrency sets the number of batch workers; values below 1 mean sequential
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		e.concurrency = n
	}
}

// Exporter is safe for concurrent use
type Exporter struct {
	assembler   *assembler.Assembler
	serializer  *isdoc.Serializer
	validator   validator.Validator
	metrics     *metrics.Metrics
	baseLogger  zerolog.Logger
	logger      zerolog.Logger
	concurrency int
}

// New creates an exporter
func New(opts ...Option) *Exporter {
	e := &Exporter{
		serializer:  isdoc.NewSerializer(),
		validator:   validator.NewStructural(),
		baseLogger:  zerolog.Nop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.WithComponent(e.baseLogger, "export")
	if e.assembler == nil {
		e.assembler = assembler.New(assembler.WithLogger(e.baseLogger))
	}
	return e
}

// Export builds, renders and validates one invoice.
//
// A document that fails validation yields both the Result (so the content
// and errors can be inspected) and a *model.StructuralViolation.
func (e *Exporter) Export(ctx context.Context, tx *model.Transaction, profile *model.Profile) (*Result, error) {
	start := time.Now()
	res, err := e.export(ctx, tx, profile)
	if res != nil {
		res.Duration = time.Since(start)
	}
	e.observe(res, err, time.Since(start))
	return res, err
}

func (e *Exporter) export(ctx context.Context, tx *model.Transaction, profile *model.Profile) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assembled, err := e.assembler.Assemble(tx, profile)
	if err != nil {
		return nil, err
	}
	inv := assembled.Invoice

	log := e.logger.With().
		Str(logger.FieldTransactionID, tx.ID).
		Str(logger.FieldInvoiceID, inv.ID).
		Logger()

	for _, w := range assembled.Warnings {
		log.Warn().Msg(w)
	}

	content, err := e.serializer.Serialize(inv)
	if err != nil {
		return nil, err
	}

	validation, err := e.validator.Validate(ctx, content)
	if err != nil {
		return nil, err
	}

	res := &Result{
		File: File{
			FileName:      FileName(inv.ID, tx.ID),
			TransactionID: tx.ID,
			InvoiceID:     inv.ID,
			Content:       content,
		},
		Invoice:    inv,
		Validation: validation,
		Warnings:   assembled.Warnings,
	}

	if !validation.Valid {
		log.Error().Strs("errors", validation.Errors).Msg("Generated document failed validation")
		return res, model.NewStructuralViolation(inv.ID, validation.Errors)
	}

	log.Debug().Str(logger.FieldFile, res.File.FileName).Msg("Exported invoice")
	return res, nil
}

func (e *Exporter) observe(res *Result, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}

	e.metrics.ExportDuration.Observe(elapsed.Seconds())

	var violation *model.StructuralViolation
	switch {
	case err == nil:
		e.metrics.ExportsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	case errors.As(err, &violation):
		e.metrics.ExportsTotal.WithLabelValues(metrics.StatusInvalid).Inc()
		name := e.validator.Name()
		if res != nil && res.Validation != nil && res.Validation.Validator != "" {
			name = res.Validation.Validator
		}
		e.metrics.ValidationFailures.WithLabelValues(name).Inc()
	default:
		e.metrics.ExportsTotal.WithLabelValues(metrics.StatusError).Inc()
	}

	if res != nil {
		e.metrics.Warnings.Add(float64(len(res.Warnings)))
	}
}

// FileName derives the download name from the invoice id. Characters that
// are unsafe in file names become underscores; an id with nothing usable
// falls back to the transaction id.
func FileName(invoiceID, transactionID string) string {
	name := sanitize(invoiceID)
	if name == "" {
		name = sanitize(transactionID)
	}
	if name == "" {
		name = "unnamed"
	}
	return FilePrefix + name + isdoc.FileExtension
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if strings.Trim(mapped, "_.") == "" {
		return ""
	}
	return mapped
}
