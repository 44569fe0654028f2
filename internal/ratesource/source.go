// Package ratesource supplies wholesale SMS delivery costs per
// destination country. The pricing engine never invents a base cost;
// callers default a missing base cost through a Source chain before
// asking for a quote.
package ratesource

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Source resolves the wholesale unit cost for a destination country.
// An empty country code resolves to the fallback rate.
type Source interface {
	UnitCost(ctx context.Context, countryCode string) (decimal.Decimal, error)
}

// Static is a compiled-in rate table with a fallback for unknown
// destinations. It is the terminal element of every source chain so a
// quote can always be defaulted even with the cache and the upstream
// price list unavailable.
type Static struct {
	rates    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewStatic builds a static source from the given table and fallback.
func NewStatic(rates map[string]decimal.Decimal, fallback decimal.Decimal) *Static {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for cc, rate := range rates {
		normalized[strings.ToUpper(cc)] = rate
	}
	return &Static{rates: normalized, fallback: fallback}
}

// DefaultStatic returns the built-in wholesale table. Values are
// indicative USD unit costs per message part.
func DefaultStatic() *Static {
	return NewStatic(map[string]decimal.Decimal{
		"US": decimal.RequireFromString("0.00645"),
		"GB": decimal.RequireFromString("0.03540"),
		"DE": decimal.RequireFromString("0.08510"),
		"FR": decimal.RequireFromString("0.07160"),
		"IN": decimal.RequireFromString("0.00223"),
		"PH": decimal.RequireFromString("0.00740"),
		"ID": decimal.RequireFromString("0.02470"),
		"NG": decimal.RequireFromString("0.01860"),
		"KE": decimal.RequireFromString("0.02280"),
		"GH": decimal.RequireFromString("0.02510"),
		"ZA": decimal.RequireFromString("0.01550"),
		"BR": decimal.RequireFromString("0.02040"),
		"MX": decimal.RequireFromString("0.01290"),
	}, decimal.RequireFromString("0.04000"))
}

// UnitCost returns the table rate for the country or the fallback.
func (s *Static) UnitCost(_ context.Context, countryCode string) (decimal.Decimal, error) {
	if rate, ok := s.rates[strings.ToUpper(countryCode)]; ok {
		return rate, nil
	}
	return s.fallback, nil
}
