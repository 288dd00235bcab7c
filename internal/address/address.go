// Package address structures free-text postal addresses.
package address

import (
	"strings"

	"github.com/rezonia/isdoc-export/internal/model"
)

// Parser turns a free-text address into its parts.
// Country fields are left to the caller.
type Parser interface {
	Parse(raw string) model.Address
}

// Func adapts a plain function to Parser
type Func func(raw string) model.Address

// Parse calls f(raw)
func (f Func) Parse(raw string) model.Address {
	return f(raw)
}

// Heuristic handles the common Czech "Street 123, 110 00 City" layout.
// Anything else is parsed best-effort and never fails.
type Heuristic struct{}

// NewHeuristic returns the default parser
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Parse splits on commas: the first segment's last token is the building
// number, the second segment's first two tokens are the postal code.
func (Heuristic) Parse(raw string) model.Address {
	segments := strings.Split(raw, ",")
	if len(segments) < 2 {
		return model.Address{Street: raw}
	}

	var addr model.Address

	street := strings.Fields(strings.TrimSpace(segments[0]))
	if n := len(street); n > 0 {
		addr.BuildingNumber = street[n-1]
		addr.Street = strings.Join(street[:n-1], " ")
	}

	city := strings.Fields(strings.TrimSpace(segments[1]))
	switch {
	case len(city) >= 2:
		addr.PostalCode = strings.Join(city[:2], " ")
		addr.City = strings.Join(city[2:], " ")
	default:
		addr.PostalCode = strings.Join(city, " ")
	}

	return addr
}
