package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one priced row of a persisted quote.
type LineItem struct {
	Name      string              `json:"name"`
	PriceFrom decimal.Decimal     `json:"priceFrom"`
	PriceTo   decimal.NullDecimal `json:"priceTo"`
}

// Contribution lets line items be re-aggregated like catalog components.
func (l LineItem) Contribution() (Contribution, Status) {
	return TypeAmount{
		Name:      l.Name,
		PriceFrom: decimal.NewNullDecimal(l.PriceFrom),
		PriceTo:   l.PriceTo,
	}.Contribution()
}

// Display renders the line's price, collapsing equal bounds.
func (l LineItem) Display() string {
	to := l.PriceFrom
	if l.PriceTo.Valid && l.PriceTo.Decimal.GreaterThan(to) {
		to = l.PriceTo.Decimal
	}
	return FormatRange(l.PriceFrom, to)
}

// Snapshot is the denormalized pricing copy stored on a submission.
type Snapshot struct {
	Items []LineItem `json:"pricingDetails"`
	Total Total      `json:"totalPrice"`
}

// SnapshotOf builds a snapshot from line items, totalling them with the engine.
func SnapshotOf(items []LineItem) Snapshot {
	comps := make([]Component, len(items))
	for i := range items {
		comps[i] = items[i]
	}
	return Snapshot{Items: items, Total: Aggregate(comps...)}
}

// Validate checks the snapshot shape and returns a field -> message map of
// problems, or nil when the snapshot is well formed.
func (s Snapshot) Validate() map[string]string {
	problems := map[string]string{}
	for i, item := range s.Items {
		key := fmt.Sprintf("pricingDetails[%d]", i)
		if strings.TrimSpace(item.Name) == "" {
			problems[key+".name"] = "is required"
		}
		if item.PriceFrom.IsNegative() {
			problems[key+".priceFrom"] = "must be >= 0"
		}
		if item.PriceTo.Valid && item.PriceTo.Decimal.LessThan(item.PriceFrom) {
			problems[key+".priceTo"] = "must be >= priceFrom"
		}
	}
	if s.Total.Priced {
		if s.Total.Min.IsNegative() {
			problems["totalPrice.min"] = "must be >= 0"
		}
		if s.Total.Max.LessThan(s.Total.Min) {
			problems["totalPrice.max"] = "must be >= min"
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
