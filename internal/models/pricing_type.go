package models

import "time"

// PricingType is a named priceable dimension such as "Doctor Fee" or
// "Anesthesiologist". IsRange is advisory only: it drives how the admin form
// renders the inputs and is never enforced on attached prices.
type PricingType struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsRange     bool      `db:"is_range" json:"isRange"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
