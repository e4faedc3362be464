package extraction

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// AmountPolicy picks the amount paid from the totals pool when no consistent
// triple exists.
type AmountPolicy interface {
	SelectAmount(totals []Candidate) (Candidate, bool)
}

// UnitPricePolicy picks the per-unit price from the unit price pool when no
// consistent triple exists.
type UnitPricePolicy interface {
	SelectUnitPrice(unitPrices []Candidate) (Candidate, bool)
}

// RepeatedAmount prefers a total printed more than once on the receipt.
// Receipts commonly print the total twice: inline with a label and standalone.
type RepeatedAmount struct {
	// PreferLargest picks the largest value instead of the first in scan order,
	// both among repeated values and when nothing repeats.
	PreferLargest bool
}

// SelectAmount implements AmountPolicy
func (p RepeatedAmount) SelectAmount(totals []Candidate) (Candidate, bool) {
	if len(totals) == 0 {
		return Candidate{}, false
	}

	repeated := make([]Candidate, 0)
	for i, c := range totals {
		if slices.ContainsFunc(repeated, func(r Candidate) bool { return r.Value.Equal(c.Value) }) {
			continue
		}
		if slices.ContainsFunc(totals[i+1:], func(o Candidate) bool { return o.Value.Equal(c.Value) }) {
			repeated = append(repeated, c)
		}
	}

	pool := totals
	if len(repeated) > 0 {
		pool = repeated
	}
	if p.PreferLargest {
		return largest(pool), true
	}
	return pool[0], true
}

// LargestAmount ignores repetition and takes the largest total.
type LargestAmount struct{}

// SelectAmount implements AmountPolicy
func (LargestAmount) SelectAmount(totals []Candidate) (Candidate, bool) {
	if len(totals) == 0 {
		return Candidate{}, false
	}
	return largest(totals), true
}

// AmountPolicyByName resolves the names accepted on the command line:
// "repeated-first", "repeated-largest" and "largest".
func AmountPolicyByName(name string) (AmountPolicy, error) {
	switch name {
	case "", "repeated-first":
		return RepeatedAmount{}, nil
	case "repeated-largest":
		return RepeatedAmount{PreferLargest: true}, nil
	case "largest":
		return LargestAmount{}, nil
	}
	return nil, fmt.Errorf("unknown amount policy %q", name)
}

// PriceBand is the range a real per-unit price is expected to fall in.
type PriceBand struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// IsZero reports whether the band is unset.
func (b PriceBand) IsZero() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// Contains reports whether v is inside the band, edges included.
func (b PriceBand) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(b.Min) && v.LessThanOrEqual(b.Max)
}

// distance scores v against the band: distance to the midpoint when inside,
// otherwise distance to the nearest edge plus the half width so that any value
// inside always beats any value outside.
func (b PriceBand) distance(v decimal.Decimal) decimal.Decimal {
	half := b.Max.Sub(b.Min).Div(decimal.NewFromInt(2))
	mid := b.Min.Add(half)
	if b.Contains(v) {
		return v.Sub(mid).Abs()
	}
	if v.LessThan(b.Min) {
		return b.Min.Sub(v).Add(half)
	}
	return v.Sub(b.Max).Add(half)
}

// String implements fmt.Stringer
func (b PriceBand) String() string {
	return fmt.Sprintf("%s-%s", b.Min.StringFixed(3), b.Max.StringFixed(3))
}

// DefaultPriceBand covers typical per-gallon fuel prices.
func DefaultPriceBand() PriceBand {
	return PriceBand{Min: decimal.New(1, 0), Max: decimal.New(9999, -3)}
}

// MarkedUnitPrice prefers the single currency-marked unit price. With none or
// several marked, the candidate closest to Band wins.
type MarkedUnitPrice struct {
	Band PriceBand
}

// SelectUnitPrice implements UnitPricePolicy
func (p MarkedUnitPrice) SelectUnitPrice(unitPrices []Candidate) (Candidate, bool) {
	if len(unitPrices) == 0 {
		return Candidate{}, false
	}

	marked := make([]Candidate, 0, len(unitPrices))
	for _, c := range unitPrices {
		if c.HasCurrencyMarker {
			marked = append(marked, c)
		}
	}
	if len(marked) == 1 {
		return marked[0], true
	}

	pool := unitPrices
	if len(marked) > 1 {
		pool = marked
	}
	if p.Band.IsZero() {
		return pool[0], true
	}

	best := pool[0]
	bestDist := p.Band.distance(best.Value)
	for _, c := range pool[1:] {
		if d := p.Band.distance(c.Value); d.LessThan(bestDist) {
			best, bestDist = c, d
		}
	}
	return best, true
}

// Fallback derives a best-effort amount and unit price from the pools alone.
// It returns nil when there is no total to report. Quantity is never set.
func Fallback(pools Pools, amounts AmountPolicy, prices UnitPricePolicy) *ExtractedExpense {
	total, ok := amounts.SelectAmount(slices.Collect(pools.Totals()))
	if !ok {
		return nil
	}

	expense := &ExtractedExpense{Amount: total.Value}
	if price, ok := prices.SelectUnitPrice(slices.Collect(pools.UnitPrices())); ok {
		expense.UnitPrice = decimal.NewNullDecimal(price.Value)
	}
	return expense
}

func largest(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Value.GreaterThan(best.Value) {
			best = c
		}
	}
	return best
}
