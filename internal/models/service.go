package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

// PricingMode tells which attachments determine a service's price.
type PricingMode string

const (
	// PricingModeFlat: the service's own pricing types and materials.
	PricingModeFlat PricingMode = "flat"
	// PricingModeVariation: pricing is delegated to the service variations.
	PricingModeVariation PricingMode = "variation"
)

// Valid reports whether m is a known mode.
func (m PricingMode) Valid() bool {
	return m == PricingModeFlat || m == PricingModeVariation
}

// Service is a procedure offered in the catalog.
type Service struct {
	ID          int         `db:"id" json:"id"`
	CategoryID  int         `db:"category_id" json:"categoryId"`
	ParentID    *int        `db:"parent_id" json:"parentId,omitempty"`
	Name        string      `db:"name" json:"name"`
	Slug        string      `db:"slug" json:"slug"`
	Description *string     `db:"description" json:"description,omitempty"`
	PricingMode PricingMode `db:"pricing_mode" json:"pricingMode"`
	IsActive    bool        `db:"is_active" json:"isActive"`
	SortOrder   int         `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time   `db:"created_at" json:"-"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`

	// Relations, loaded by the repository.
	Category     *Category          `db:"-" json:"category,omitempty"`
	PricingTypes []TypeAttachment   `db:"-" json:"pricingTypes"`
	Materials    []Material         `db:"-" json:"materials"`
	Variations   []ServiceVariation `db:"-" json:"variations"`
	Fees         []ServiceFee       `db:"-" json:"pricings"`
	TotalPrice   pricing.Total      `db:"-" json:"totalPrice"`
}

// TypeAttachment is a pricing type attached to a service or a variation,
// carrying the per-subject price_from/price_to.
type TypeAttachment struct {
	OwnerID       int                 `db:"owner_id" json:"-"`
	PricingTypeID int                 `db:"pricing_type_id" json:"pricingTypeId"`
	Name          string              `db:"name" json:"name"`
	Slug          string              `db:"slug" json:"slug"`
	IsRange       bool                `db:"is_range" json:"isRange"`
	PriceFrom     decimal.NullDecimal `db:"price_from" json:"priceFrom"`
	PriceTo       decimal.NullDecimal `db:"price_to" json:"priceTo"`
}

// Component exposes the attachment to the aggregation engine.
func (a TypeAttachment) Component() pricing.Component {
	return pricing.TypeAmount{Name: a.Name, PriceFrom: a.PriceFrom, PriceTo: a.PriceTo}
}

// ServiceVariation is an alternative configuration of a service.
type ServiceVariation struct {
	ID          int       `db:"id" json:"id"`
	ServiceID   int       `db:"service_id" json:"serviceId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`

	PricingTypes []TypeAttachment `db:"-" json:"pricingTypes"`
	TotalPrice   pricing.Total    `db:"-" json:"totalPrice"`
}

// Total aggregates the variation's own pricing type attachments.
func (v ServiceVariation) Total() pricing.Total {
	comps := make([]pricing.Component, 0, len(v.PricingTypes))
	for _, a := range v.PricingTypes {
		comps = append(comps, a.Component())
	}
	return pricing.Aggregate(comps...)
}

// RequiredFees returns the attached pricing records flagged is_required.
func (s Service) RequiredFees() []ServiceFee {
	var out []ServiceFee
	for _, f := range s.Fees {
		if f.IsRequired && f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

func (s Service) feeTotal() pricing.Total {
	fees := s.RequiredFees()
	comps := make([]pricing.Component, 0, len(fees))
	for _, f := range fees {
		comps = append(comps, f.Fee())
	}
	return pricing.Aggregate(comps...)
}

// ActiveVariations filters out inactive variations.
func (s Service) ActiveVariations() []ServiceVariation {
	var out []ServiceVariation
	for _, v := range s.Variations {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

// InVariationMode reports whether pricing is delegated to variations.
// The stored mode wins; a service without a stored mode falls back to
// checking for active variations.
func (s Service) InVariationMode() bool {
	if s.PricingMode.Valid() {
		return s.PricingMode == PricingModeVariation
	}
	return len(s.ActiveVariations()) > 0
}

// OwnTotal aggregates the service's own attachments and required fees,
// ignoring variations.
func (s Service) OwnTotal() pricing.Total {
	comps := make([]pricing.Component, 0, len(s.PricingTypes)+len(s.Materials))
	for _, a := range s.PricingTypes {
		comps = append(comps, a.Component())
	}
	for _, m := range s.Materials {
		comps = append(comps, m.Component())
	}
	for _, f := range s.RequiredFees() {
		comps = append(comps, f.Fee())
	}
	return pricing.Aggregate(comps...)
}

// Total is the effective price of the service. In variation mode it spans
// the cheapest and the most expensive active variation, each with the
// required fees added.
func (s Service) Total() pricing.Total {
	if !s.InVariationMode() {
		return s.OwnTotal()
	}
	fees := s.feeTotal()
	variations := s.ActiveVariations()
	totals := make([]pricing.Total, 0, len(variations))
	for _, v := range variations {
		t := v.Total()
		if t.Priced {
			t = t.Plus(fees)
		}
		totals = append(totals, t)
	}
	return pricing.Span(totals...)
}

// Variation looks up an active variation by id.
func (s Service) Variation(id int) (ServiceVariation, bool) {
	for _, v := range s.ActiveVariations() {
		if v.ID == id {
			return v, true
		}
	}
	return ServiceVariation{}, false
}

// LineItems lists the priced rows of the service (or of one of its
// variations when variation is non-nil) for a submission snapshot.
// Unusable components and percentage fees are left out.
func (s Service) LineItems(variation *ServiceVariation) []pricing.LineItem {
	var items []pricing.LineItem
	add := func(name string, c pricing.Contribution, st pricing.Status) {
		if st != pricing.Summed {
			return
		}
		item := pricing.LineItem{Name: name, PriceFrom: c.Min}
		if !c.Max.Equal(c.Min) {
			item.PriceTo = decimal.NewNullDecimal(c.Max)
		}
		items = append(items, item)
	}

	attachments := s.PricingTypes
	if variation != nil {
		attachments = variation.PricingTypes
	}
	for _, a := range attachments {
		c, st := a.Component().Contribution()
		add(a.Name, c, st)
	}
	if variation == nil {
		for _, m := range s.Materials {
			c, st := m.Component().Contribution()
			add(m.Name, c, st)
		}
	}
	for _, f := range s.RequiredFees() {
		c, st := f.Fee().Contribution()
		add(f.Name, c, st)
	}
	return items
}

// ComputeTotals fills TotalPrice on the service and its variations.
func (s *Service) ComputeTotals() {
	for i := range s.Variations {
		s.Variations[i].TotalPrice = s.Variations[i].Total()
	}
	s.TotalPrice = s.Total()
}
