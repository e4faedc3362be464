package extraction

import (
	"slices"

	"github.com/shopspring/decimal"
)

// DefaultTolerance accepts a triple when unitPrice*quantity is within half a
// cent of the total.
func DefaultTolerance() decimal.Decimal {
	return decimal.New(5, -3)
}

// ExtractedExpense is the structured expense inferred from a receipt
type ExtractedExpense struct {
	Amount    decimal.Decimal     `json:"amount"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	Error     decimal.Decimal     `json:"error"` // |unitPrice*quantity - amount|, zero for fallback
}

// FindMatches returns every (total, unit price, quantity) combination whose
// arithmetic agrees within tolerance, best match first. Candidates whose value
// is in exclude are skipped, which lets callers run repeated passes without
// reusing values already claimed. An unmarked three-decimal candidate may serve
// as both unit price and quantity of one triple.
func FindMatches(pools Pools, tolerance decimal.Decimal, exclude ...decimal.Decimal) []ExtractedExpense {
	return search(pools, tolerance, false, exclude)
}

// FindDistinctMatches is FindMatches without triples whose unit price and
// quantity are the same printed number.
func FindDistinctMatches(pools Pools, tolerance decimal.Decimal, exclude ...decimal.Decimal) []ExtractedExpense {
	return search(pools, tolerance, true, exclude)
}

func search(pools Pools, tolerance decimal.Decimal, distinct bool, exclude []decimal.Decimal) []ExtractedExpense {
	excluded := func(c Candidate) bool {
		return slices.ContainsFunc(exclude, c.Value.Equal)
	}

	matches := make([]ExtractedExpense, 0)
	for total := range pools.Totals() {
		if excluded(total) {
			continue
		}
		for price := range pools.UnitPrices() {
			if excluded(price) {
				continue
			}
			for qty := range pools.Quantities() {
				if excluded(qty) || (distinct && qty.Index == price.Index) {
					continue
				}
				diff := price.Value.Mul(qty.Value).Sub(total.Value).Abs()
				if diff.GreaterThan(tolerance) {
					continue
				}
				matches = append(matches, ExtractedExpense{
					Amount:    total.Value,
					UnitPrice: decimal.NewNullDecimal(price.Value),
					Quantity:  decimal.NewNullDecimal(qty.Value),
					Error:     diff,
				})
			}
		}
	}

	slices.SortStableFunc(matches, func(a, b ExtractedExpense) int {
		return a.Error.Cmp(b.Error)
	})
	return matches
}
