package extraction

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// currencyMarker is the symbol that marks a printed amount as money.
const currencyMarker = '$'

// maxDecimalDigits caps how many fractional digits a candidate keeps.
const maxDecimalDigits = 3

var (
	// expenseLikeValue matches a digit, a decimal separator and a digit.
	expenseLikeValue = regexp.MustCompile(`\d\.\d`)

	// candidateValue matches an optional marker, the integer part, two or three
	// fractional digits and then swallows any further fractional digits so they
	// are never scanned again.
	candidateValue = regexp.MustCompile(`(\$?)(\d+)\.(\d{2,3})\d*`)
)

// Candidate is a single numeric reading found in receipt text
type Candidate struct {
	RawText           string          `json:"raw_text"`
	Value             decimal.Decimal `json:"value"`
	HasCurrencyMarker bool            `json:"has_currency_marker"`
	DecimalDigits     int             `json:"decimal_digits"`
	Line              int             `json:"line"`  // index of the source line
	Index             int             `json:"index"` // position in scan order
}

// ContainsExpenseLikeValue reports whether s has a digit immediately before
// and after a decimal separator.
func ContainsExpenseLikeValue(s string) bool {
	return expenseLikeValue.MatchString(s)
}

// ExtractCandidates scans lines in order and returns every expense-like value.
// Zero values are dropped; repeated values are not.
func ExtractCandidates(lines []string) []Candidate {
	candidates := make([]Candidate, 0)
	for lineNo, line := range lines {
		prevEnd := 0
		for _, m := range candidateValue.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			marker := m[3] > m[2]
			intPart := line[m[4]:m[5]]
			fracPart := line[m[6]:m[7]]

			value, err := decimal.NewFromString(intPart + "." + fracPart)
			if err != nil || value.IsZero() {
				prevEnd = end
				continue
			}

			valueEnd := m[7]
			rawStart := labelStart(line, start, prevEnd)
			prevEnd = end

			candidates = append(candidates, Candidate{
				RawText:           line[rawStart:valueEnd],
				Value:             value,
				HasCurrencyMarker: marker,
				DecimalDigits:     len(fracPart),
				Line:              lineNo,
				Index:             len(candidates),
			})
		}
	}
	return candidates
}

// labelStart returns where the raw text of a value starting at start begins.
// A label is kept only when whitespace separates it from the value and it
// does not reach back into text already claimed by an earlier match.
func labelStart(line string, start, floor int) int {
	i := start
	for i > floor {
		r, size := utf8.DecodeLastRuneInString(line[:i])
		if !unicode.IsSpace(r) {
			break
		}
		i -= size
	}
	if i == start || i == floor {
		return start
	}

	labelEnd := i
	for i > floor {
		r, size := utf8.DecodeLastRuneInString(line[:i])
		if unicode.IsSpace(r) {
			break
		}
		i -= size
	}
	if i == floor && floor > 0 {
		// the run touches the previous match, so it is part of that reading
		r, _ := utf8.DecodeLastRuneInString(line[:floor])
		if !unicode.IsSpace(r) {
			return start
		}
	}
	if i == labelEnd {
		return start
	}
	return i
}
