package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

// DefaultCurrency is applied to pricing records created without a currency.
const DefaultCurrency = "EUR"

// Pricing is a standalone fee record. Only the amount fields matching Type
// are populated; the others are NULL.
type Pricing struct {
	ID             int                 `db:"id" json:"id"`
	Name           string              `db:"name" json:"name"`
	Description    *string             `db:"description" json:"description,omitempty"`
	Type           pricing.FeeType     `db:"type" json:"type"`
	FlatAmount     decimal.NullDecimal `db:"flat_amount" json:"flatAmount"`
	MinAmount      decimal.NullDecimal `db:"min_amount" json:"minAmount"`
	MaxAmount      decimal.NullDecimal `db:"max_amount" json:"maxAmount"`
	PercentageRate decimal.NullDecimal `db:"percentage_rate" json:"percentageRate"`
	Currency       string              `db:"currency" json:"currency"`
	IsExclusive    bool                `db:"is_exclusive" json:"isExclusive"`
	IsActive       bool                `db:"is_active" json:"isActive"`
	SortOrder      int                 `db:"sort_order" json:"sortOrder"`
	CreatedAt      time.Time           `db:"created_at" json:"-"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updatedAt"`
}

// Fee converts the record into an aggregation component.
func (p Pricing) Fee() pricing.FeeAmount {
	return pricing.FeeAmount{
		Name:           p.Name,
		Type:           p.Type,
		FlatAmount:     p.FlatAmount,
		MinAmount:      p.MinAmount,
		MaxAmount:      p.MaxAmount,
		PercentageRate: p.PercentageRate,
	}
}

// FormattedAmount renders the amount with the record's currency code.
func (p Pricing) FormattedAmount() string {
	return p.Fee().FormattedAmount(p.Currency)
}

// DisplayName is "name (formatted amount)".
func (p Pricing) DisplayName() string {
	return p.Name + " (" + p.FormattedAmount() + ")"
}

// ClearUnusedAmounts nulls every amount field that does not belong to Type.
func (p *Pricing) ClearUnusedAmounts() {
	if p.Type != pricing.FeeFlat {
		p.FlatAmount = decimal.NullDecimal{}
	}
	if p.Type != pricing.FeeRange {
		p.MinAmount = decimal.NullDecimal{}
		p.MaxAmount = decimal.NullDecimal{}
	}
	if p.Type != pricing.FeePercentage {
		p.PercentageRate = decimal.NullDecimal{}
	}
}

// ServiceFee is a pricing record attached to a service.
type ServiceFee struct {
	ServiceID  int     `db:"service_id" json:"-"`
	IsRequired bool    `db:"is_required" json:"isRequired"`
	Notes      *string `db:"notes" json:"notes,omitempty"`
	Pricing
}
