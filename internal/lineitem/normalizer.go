// Package lineitem decodes extracted invoice lines or synthesizes one
// from the transaction totals.
package lineitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	dec "github.com/rezonia/isdoc-export/internal/decimal"
	"github.com/rezonia/isdoc-export/internal/fields"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/model"
)

// Fallback describes the single line synthesized when no lines were extracted
type Fallback struct {
	Description string          // Transaction name
	Gross       decimal.Decimal // Transaction amount in currency units, VAT included
	VATRate     decimal.Decimal
	VATAmount   decimal.Decimal
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithLogger sets the logger used for decode failures
func WithLogger(l zerolog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger.WithComponent(l, "lineitem")
	}
}

// Normalizer turns raw line-item input into model line items
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize decodes raw as a JSON array of line records.
//
// A nil raw synthesizes exactly one line from fb. A raw value that cannot be
// decoded yields no lines and a *model.DecodeError; the synthesized line is
// not used in that case. The error is informational and the empty result is
// what the invoice should carry.
func (n *Normalizer) Normalize(raw json.RawMessage, fb Fallback) ([]model.LineItem, error) {
	if raw == nil {
		return []model.LineItem{synthesize(fb)}, nil
	}

	entries, err := decodeArray(raw)
	if err != nil {
		decodeErr := model.NewDecodeError(fields.KeyLineItems, "line items are not a JSON array", err)
		n.logger.Warn().Err(decodeErr).Msg("Failed to parse line items")
		return []model.LineItem{}, decodeErr
	}

	items := make([]model.LineItem, 0, len(entries))
	for i, entry := range entries {
		record, _ := entry.(map[string]any)
		items = append(items, normalizeEntry(record, i))
	}

	n.logger.Debug().Int(logger.FieldCount, len(items)).Msg("Parsed line items")
	return items, nil
}

func synthesize(fb Fallback) model.LineItem {
	description := strings.TrimSpace(fb.Description)
	if description == "" {
		description = model.DefaultItemDescription
	}

	net := dec.NetFromGross(fb.Gross, fb.VATRate)
	return model.LineItem{
		ID:          "ITEM-1",
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		Unit:        model.DefaultUnit,
		UnitPrice:   net,
		TotalPrice:  net,
		VATRate:     fb.VATRate,
		VATAmount:   fb.VATAmount,
	}
}

func normalizeEntry(record map[string]any, index int) model.LineItem {
	id := text(record["code"])
	if id == "" {
		id = fmt.Sprintf("ITEM-%d", index+1)
	}

	unit := text(record["unit"])
	if unit == "" {
		unit = model.DefaultUnit
	}

	return model.LineItem{
		ID:          id,
		Description: text(record["description"]),
		Quantity:    dec.CoerceOr(record["quantity"], decimal.NewFromInt(1)),
		Unit:        unit,
		UnitPrice:   dec.CoerceOr(record["unit_price"], dec.Zero),
		TotalPrice:  dec.CoerceOr(record["total"], dec.Zero),
		VATRate:     dec.CoerceOr(record["vat_rate"], dec.Zero),
		VATAmount:   dec.CoerceOr(record["vat_amount"], dec.Zero),
	}
}

func decodeArray(raw json.RawMessage) ([]any, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var entries []any
	if err := d.Decode(&entries); err != nil {
		return nil, err
	}
	if entries == nil {
		// JSON null
		return nil, fmt.Errorf("null line items")
	}
	return entries, nil
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
