package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TypeAmount is a pricing type attached to a service or variation with its
// per-subject price_from/price_to.
type TypeAmount struct {
	Name      string
	PriceFrom decimal.NullDecimal
	PriceTo   decimal.NullDecimal
}

// Contribution adds price_from to the minimum and price_to (or price_from
// when absent) to the maximum. A price_to below price_from is treated as
// absent so the maximum never drops under the minimum.
func (a TypeAmount) Contribution() (Contribution, Status) {
	if !usable(a.PriceFrom) {
		return Contribution{}, Unusable
	}
	max := a.PriceFrom.Decimal
	if usable(a.PriceTo) && a.PriceTo.Decimal.GreaterThan(max) {
		max = a.PriceTo.Decimal
	}
	return Contribution{Min: a.PriceFrom.Decimal, Max: max}, Summed
}

// MaterialAmount is a flat-priced add-on. It contributes equally to both bounds.
type MaterialAmount struct {
	Name  string
	Price decimal.NullDecimal
}

func (m MaterialAmount) Contribution() (Contribution, Status) {
	if !usable(m.Price) {
		return Contribution{}, Unusable
	}
	return Contribution{Min: m.Price.Decimal, Max: m.Price.Decimal}, Summed
}

// FeeType enumerates the kinds of standalone pricing records.
type FeeType string

const (
	FeeFlat       FeeType = "flat"
	FeeRange      FeeType = "range"
	FeePercentage FeeType = "percentage"
)

// Valid reports whether t is a known fee type.
func (t FeeType) Valid() bool {
	switch t {
	case FeeFlat, FeeRange, FeePercentage:
		return true
	}
	return false
}

// FeeAmount is a standalone pricing record.
type FeeAmount struct {
	Name           string
	Type           FeeType
	FlatAmount     decimal.NullDecimal
	MinAmount      decimal.NullDecimal
	MaxAmount      decimal.NullDecimal
	PercentageRate decimal.NullDecimal
}

func (f FeeAmount) Contribution() (Contribution, Status) {
	switch f.Type {
	case FeeFlat:
		if !usable(f.FlatAmount) {
			return Contribution{}, Unusable
		}
		return Contribution{Min: f.FlatAmount.Decimal, Max: f.FlatAmount.Decimal}, Summed
	case FeeRange:
		if !usable(f.MinAmount) {
			return Contribution{}, Unusable
		}
		max := f.MinAmount.Decimal
		if usable(f.MaxAmount) && f.MaxAmount.Decimal.GreaterThan(max) {
			max = f.MaxAmount.Decimal
		}
		return Contribution{Min: f.MinAmount.Decimal, Max: max}, Summed
	case FeePercentage:
		return Contribution{}, Informational
	}
	return Contribution{}, Unusable
}

// FormattedAmount renders the fee the way the admin catalog lists it, using
// the record's currency code: "EUR 1,000.00", "EUR 100.00 - 200.00" or "12.50%".
func (f FeeAmount) FormattedAmount(currency string) string {
	switch f.Type {
	case FeeFlat:
		return fmt.Sprintf("%s %s", currency, groupThousands(f.FlatAmount.Decimal))
	case FeeRange:
		return fmt.Sprintf("%s %s - %s", currency, groupThousands(f.MinAmount.Decimal), groupThousands(f.MaxAmount.Decimal))
	case FeePercentage:
		return f.PercentageRate.Decimal.StringFixed(2) + "%"
	}
	return "N/A"
}

func groupThousands(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	if d.IsNegative() {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}
