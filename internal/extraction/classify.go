package extraction

import (
	"iter"
	"slices"
)

// Pools holds the role views over one candidate list. A candidate can belong
// to any number of pools; classifying never moves or removes candidates.
type Pools struct {
	candidates []Candidate
}

// Classify tags candidates into the totals, unit price and quantity roles
func Classify(candidates []Candidate) Pools {
	return Pools{candidates: slices.Clone(candidates)}
}

// IsTotal reports whether c looks like an amount paid: currency marked, cents.
func IsTotal(c Candidate) bool {
	return c.HasCurrencyMarker && c.DecimalDigits == 2
}

// IsUnitPrice reports whether c looks like a per-unit price: three decimals.
func IsUnitPrice(c Candidate) bool {
	return c.DecimalDigits == 3
}

// IsQuantity reports whether c looks like a purchased quantity: no marker.
func IsQuantity(c Candidate) bool {
	return !c.HasCurrencyMarker
}

// Candidates returns every candidate in scan order
func (p Pools) Candidates() iter.Seq[Candidate] {
	return slices.Values(p.candidates)
}

// Totals yields the total-like candidates in scan order
func (p Pools) Totals() iter.Seq[Candidate] {
	return p.filter(IsTotal)
}

// UnitPrices yields the unit-price-like candidates in scan order
func (p Pools) UnitPrices() iter.Seq[Candidate] {
	return p.filter(IsUnitPrice)
}

// Quantities yields the quantity-like candidates in scan order
func (p Pools) Quantities() iter.Seq[Candidate] {
	return p.filter(IsQuantity)
}

// Len returns the number of candidates behind the pools.
func (p Pools) Len() int {
	return len(p.candidates)
}

func (p Pools) filter(keep func(Candidate) bool) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, c := range p.candidates {
			if !keep(c) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}
