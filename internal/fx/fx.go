// Package fx normalizes invoice amounts to the reference currency (spec
// §4.10 stage 5) using a static configured rate table.
package fx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Port is the currency-conversion dependency the pipeline orchestrator
// calls; a single static implementation backs it today, but keeping it an
// interface leaves room for a live-rate provider later without touching
// callers.
type Port interface {
	ToReference(currency string, amount decimal.Decimal) (decimal.Decimal, error)
}

// StaticTable converts using a fixed currency→reference-currency rate map
// (config.FXRates), loaded once at startup.
type StaticTable struct {
	referenceCurrency string
	rates             map[string]float64
}

func NewStaticTable(referenceCurrency string, rates map[string]float64) *StaticTable {
	return &StaticTable{referenceCurrency: referenceCurrency, rates: rates}
}

// ToReference converts amount, denominated in currency, into the
// configured reference currency. A currency matching the reference
// currency converts at 1:1 without a table lookup.
func (t *StaticTable) ToReference(currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if currency == "" || currency == t.referenceCurrency {
		return amount, nil
	}

	rate, ok := t.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("fx: no rate configured for currency %q", currency)
	}
	return amount.Mul(decimal.NewFromFloat(rate)), nil
}
