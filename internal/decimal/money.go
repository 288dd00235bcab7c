package decimal

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// FromMinorUnits converts an integer amount in minor units (haléře) to currency units
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// FromFloat creates decimal from float with rounding
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Coerce converts a loosely typed value into a decimal.
// Strings accept Czech formatting ("1 234,50") and trailing garbage the way
// parseFloat does ("21 %" -> 21). Returns false when nothing numeric is found.
func Coerce(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return Zero, false
	case decimal.Decimal:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case json.Number:
		return coerceString(t.String())
	case string:
		return coerceString(t)
	default:
		return Zero, false
	}
}

// CoerceOr returns the coerced value or def when v is not numeric.
// A coerced zero is treated as missing, so def applies to it as well.
func CoerceOr(v any, def decimal.Decimal) decimal.Decimal {
	d, ok := Coerce(v)
	if !ok || d.IsZero() {
		return def
	}
	return d
}

func coerceString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	// Normalize thousands separators and decimal comma
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}

	// Longest numeric prefix
	end := 0
	seenDot := false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			end = i + 1
		case (r == '-' || r == '+') && i == 0:
		case r == '.' && !seenDot:
			seenDot = true
		default:
			break scan
		}
	}
	if end == 0 {
		return Zero, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// Mul multiplies two decimals, rounds to 2 places
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// Div divides a by b, rounds to 2 places
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// RateFactor returns 1 + rate/100
func RateFactor(ratePercent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
}

// NetFromGross strips VAT from a gross amount: gross / (1 + rate/100), rounded to 2 places
func NetFromGross(gross, ratePercent decimal.Decimal) decimal.Decimal {
	return Div(gross, RateFactor(ratePercent))
}

// GrossFromNet adds VAT to a net amount: net * (1 + rate/100), rounded to 2 places
func GrossFromNet(net, ratePercent decimal.Decimal) decimal.Decimal {
	return Mul(net, RateFactor(ratePercent))
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// Format2 renders with exactly two decimal digits
func Format2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatRate renders a percentage without trailing zeros ("21", "12.5")
func FormatRate(d decimal.Decimal) string {
	return d.String()
}

// ApproxEqual reports whether a and b differ by at most tolerance
func ApproxEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// ClampNonNegative returns zero for negative values
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}
