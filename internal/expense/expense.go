package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source records how an expense's numbers were obtained
type Source string

const (
	SourceMatched  Source = "matched"  // amount, price and quantity agreed arithmetically
	SourceFallback Source = "fallback" // best-effort amount and price
	SourceManual   Source = "manual"   // entered or corrected by hand
)

// Category groups expenses for the gig-work ledger
type Category string

const (
	CategoryFuel        Category = "fuel"
	CategoryMaintenance Category = "maintenance"
	CategoryTolls       Category = "tolls"
	CategoryParking     Category = "parking"
	CategoryOther       Category = "other"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryFuel, CategoryMaintenance, CategoryTolls, CategoryParking, CategoryOther:
		return true
	}
	return false
}

// Expense is a gig-work expense, usually suggested from a receipt photo and
// confirmed by the user
type Expense struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Date        time.Time           `json:"date"`
	Category    Category            `json:"category"`
	Amount      decimal.Decimal     `json:"amount"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"` // price per gallon
	Quantity    decimal.NullDecimal `json:"quantity"`   // gallons
	Source      Source              `json:"source"`
	Filename    string              `json:"filename,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
