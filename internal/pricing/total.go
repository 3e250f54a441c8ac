package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Total is the aggregated estimate for one pricing subject.
//
// A Total with Priced == false means nothing priced was attached; it is never
// rendered as a zero price.
type Total struct {
	Min        decimal.Decimal
	Max        decimal.Decimal
	Priced     bool
	Incomplete bool
	Skipped    int
}

// Empty is the sentinel for a subject with no pricing.
func Empty() Total {
	return Total{Min: decimal.Zero, Max: decimal.Zero}
}

// NewTotal builds a priced total from explicit bounds.
func NewTotal(min, max decimal.Decimal) Total {
	return Total{Min: min, Max: max, Priced: true}
}

// IsRange reports whether the bounds differ.
func (t Total) IsRange() bool {
	return t.Priced && !t.Min.Equal(t.Max)
}

// Display is the user-facing rendering of the total.
func (t Total) Display() string {
	if !t.Priced {
		return NoPriceLabel
	}
	return FormatRange(t.Min, t.Max)
}

// Plus adds another total on top of t, bound by bound.
func (t Total) Plus(o Total) Total {
	out := Total{
		Min:        t.Min.Add(o.Min),
		Max:        t.Max.Add(o.Max),
		Priced:     t.Priced || o.Priced,
		Incomplete: t.Incomplete || o.Incomplete,
		Skipped:    t.Skipped + o.Skipped,
	}
	return out
}

// Equal compares the numeric state of two totals.
func (t Total) Equal(o Total) bool {
	if t.Priced != o.Priced {
		return false
	}
	if !t.Priced {
		return true
	}
	return t.Min.Equal(o.Min) && t.Max.Equal(o.Max)
}

type totalJSON struct {
	Min        *json.Number `json:"min"`
	Max        *json.Number `json:"max"`
	Display    string       `json:"display,omitempty"`
	Incomplete bool         `json:"incomplete,omitempty"`
}

// MarshalJSON writes min/max as numbers, or null for an unpriced total.
func (t Total) MarshalJSON() ([]byte, error) {
	out := totalJSON{Display: t.Display(), Incomplete: t.Incomplete}
	if t.Priced {
		min := json.Number(t.Min.StringFixed(2))
		max := json.Number(t.Max.StringFixed(2))
		out.Min, out.Max = &min, &max
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {"min": n, "max": n}; a missing max defaults to min.
// Null bounds yield the unpriced sentinel.
func (t *Total) UnmarshalJSON(data []byte) error {
	var in struct {
		Min        decimal.NullDecimal `json:"min"`
		Max        decimal.NullDecimal `json:"max"`
		Incomplete bool                `json:"incomplete"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Empty()
	t.Incomplete = in.Incomplete
	if !in.Min.Valid {
		return nil
	}
	t.Priced = true
	t.Min = in.Min.Decimal
	t.Max = in.Min.Decimal
	if in.Max.Valid {
		t.Max = in.Max.Decimal
	}
	return nil
}
