// Package pricing implements the aggregation engine that turns a set of
// priced components into a single {min, max} estimate.
//
// The engine never fails: components without a usable amount are skipped and
// reported through Total.Incomplete. Percentage fees have no base amount to
// apply against, so they are listed but never summed.
package pricing

import (
	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every user-facing amount.
const CurrencySymbol = "€"

// NoPriceLabel is displayed for a subject that has nothing priced attached.
const NoPriceLabel = "Contact for price"

// Status reports how a component took part in an aggregation.
type Status int

const (
	// Summed components contributed to both bounds.
	Summed Status = iota
	// Informational components are shown but never summed (percentage fees).
	Informational
	// Unusable components carried no usable amount and were skipped.
	Unusable
)

// Contribution is what a single component adds to the running bounds.
type Contribution struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Component is anything the engine can aggregate.
type Component interface {
	Contribution() (Contribution, Status)
}

// Aggregate sums the contributions of components into a Total.
func Aggregate(components ...Component) Total {
	t := Total{Min: decimal.Zero, Max: decimal.Zero}
	for _, c := range components {
		if c == nil {
			continue
		}
		contrib, status := c.Contribution()
		switch status {
		case Summed:
			t.Min = t.Min.Add(contrib.Min)
			t.Max = t.Max.Add(contrib.Max)
			t.Priced = true
		case Unusable:
			t.Skipped++
			t.Incomplete = true
		}
	}
	return t
}

// Span returns the range covering every priced total: the smallest minimum and
// the largest maximum. It is used for services priced through variations,
// where the visitor picks exactly one variation.
func Span(totals ...Total) Total {
	var out Total
	for _, t := range totals {
		if t.Incomplete {
			out.Incomplete = true
		}
		out.Skipped += t.Skipped
		if !t.Priced {
			continue
		}
		if !out.Priced {
			out.Min, out.Max, out.Priced = t.Min, t.Max, true
			continue
		}
		if t.Min.LessThan(out.Min) {
			out.Min = t.Min
		}
		if t.Max.GreaterThan(out.Max) {
			out.Max = t.Max
		}
	}
	if !out.Priced {
		out.Min, out.Max = decimal.Zero, decimal.Zero
	}
	return out
}

// Format renders an amount with the currency prefix and two decimals.
func Format(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(2)
}

// FormatRange renders from..to, collapsing to a single value when equal.
func FormatRange(from, to decimal.Decimal) string {
	if from.Equal(to) {
		return Format(from)
	}
	return Format(from) + " - " + Format(to)
}

func usable(d decimal.NullDecimal) bool {
	return d.Valid && !d.Decimal.IsNegative()
}
