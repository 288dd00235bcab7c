// Package vat resolves invoice totals and the per-rate VAT breakdown.
package vat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	dec "github.com/rezonia/isdoc-export/internal/decimal"
	"github.com/rezonia/isdoc-export/internal/fields"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/model"
)

// Tolerance is the accepted rounding difference between related amounts
var Tolerance = decimal.RequireFromString("0.01")

// Input carries everything the reconciler needs for one invoice
type Input struct {
	// Gross is the transaction amount in currency units, VAT included
	Gross decimal.Decimal
	// Rate is the single extracted VAT rate, nil when absent
	Rate *decimal.Decimal

	// Explicit extracted totals, nil when absent
	TotalWithoutVAT *decimal.Decimal
	VAT             *decimal.Decimal

	// Encoded per-rate maps, nil when absent
	Base    json.RawMessage
	Amounts json.RawMessage
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger used for decode failures
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger.WithComponent(l, "vat")
	}
}

// Reconciler builds model.Totals
type Reconciler struct {
	logger zerolog.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveTotals returns net and VAT totals. Explicit values win; a missing
// one is derived from the gross amount. Net plus VAT is the gross total.
func ResolveTotals(in Input) (net, vatTotal decimal.Decimal) {
	rate := dec.Zero
	if in.Rate != nil {
		rate = *in.Rate
	}

	switch {
	case in.TotalWithoutVAT != nil && in.VAT != nil:
		net, vatTotal = *in.TotalWithoutVAT, *in.VAT
	case in.TotalWithoutVAT != nil:
		net = *in.TotalWithoutVAT
		vatTotal = in.Gross.Sub(net)
	case in.VAT != nil:
		vatTotal = *in.VAT
		net = in.Gross.Sub(vatTotal)
	default:
		net = dec.NetFromGross(in.Gross, rate)
		vatTotal = in.Gross.Sub(net)
	}
	return net.Round(2), vatTotal.Round(2)
}

// FallbackRate is the breakdown key used when no per-rate maps exist
func FallbackRate(rate *decimal.Decimal) string {
	if rate == nil {
		return model.DefaultVATRate
	}
	return dec.FormatRate(*rate)
}

// Reconcile resolves totals and the breakdown. The returned warnings
// describe recovered problems; none of them fail the export.
func (r *Reconciler) Reconcile(in Input) (model.Totals, []string) {
	var warnings []string

	net, vatTotal := ResolveTotals(in)
	totals := model.Totals{
		TotalWithoutVAT: net,
		TotalVAT:        vatTotal,
		TotalWithVAT:    net.Add(vatTotal),
	}

	if in.Base != nil && in.Amounts != nil {
		breakdown, bw, err := decodeBreakdown(in.Base, in.Amounts)
		warnings = append(warnings, bw...)
		switch {
		case err != nil:
			r.logger.Warn().Err(err).Msg("Failed to parse VAT breakdown")
			warnings = append(warnings, err.Error())
		case len(breakdown) == 0:
			warnings = append(warnings, "VAT breakdown is empty, using totals")
		default:
			totals.VATBreakdown = breakdown
		}
	}

	if totals.VATBreakdown == nil {
		totals.VATBreakdown = map[string]model.VATAmount{
			FallbackRate(in.Rate): {
				Base:   dec.ClampNonNegative(net),
				Amount: dec.ClampNonNegative(vatTotal),
			},
		}
		if net.IsNegative() || vatTotal.IsNegative() {
			warnings = append(warnings, "negative totals clamped to zero in VAT breakdown")
		}
	}

	if base := totals.BreakdownBase(); !dec.ApproxEqual(base, net, Tolerance) {
		warnings = append(warnings, fmt.Sprintf(
			"VAT breakdown base %s differs from total without VAT %s",
			dec.Format2(base), dec.Format2(net)))
	}

	return totals, warnings
}

func decodeBreakdown(rawBase, rawAmounts json.RawMessage) (map[string]model.VATAmount, []string, error) {
	bases, err := decodeMap(rawBase)
	if err != nil {
		return nil, nil, model.NewDecodeError(fields.KeyVATBase, "expected a JSON object keyed by rate", err)
	}
	amounts, err := decodeMap(rawAmounts)
	if err != nil {
		return nil, nil, model.NewDecodeError(fields.KeyVATAmounts, "expected a JSON object keyed by rate", err)
	}

	var warnings []string
	breakdown := make(map[string]model.VATAmount, len(bases))
	for key, rawValue := range bases {
		base := dec.CoerceOr(rawValue, dec.Zero)
		amount := dec.CoerceOr(amounts[key], dec.Zero)

		if base.IsNegative() || amount.IsNegative() {
			warnings = append(warnings, fmt.Sprintf("VAT breakdown for rate %s has negative values, clamped to zero", key))
			base = dec.ClampNonNegative(base)
			amount = dec.ClampNonNegative(amount)
		}

		rate := normalizeRate(key)
		entry := breakdown[rate]
		entry.Base = entry.Base.Add(base)
		entry.Amount = entry.Amount.Add(amount)
		breakdown[rate] = entry
	}

	return breakdown, warnings, nil
}

func decodeMap(raw json.RawMessage) (map[string]any, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var m map[string]any
	if err := d.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("null map")
	}
	return m, nil
}

// normalizeRate renders "21 %" or "21.0" as "21"
func normalizeRate(key string) string {
	key = strings.TrimSpace(key)
	if d, ok := dec.Coerce(key); ok {
		return dec.FormatRate(d)
	}
	return key
}
