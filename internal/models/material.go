package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

// Material is a flat-priced add-on (implant type, mesh, ...).
type Material struct {
	ID          int             `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Slug        string          `db:"slug" json:"slug"`
	Description *string         `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	SortOrder   int             `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time       `db:"created_at" json:"-"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Component exposes the material to the aggregation engine.
func (m Material) Component() pricing.Component {
	return pricing.MaterialAmount{Name: m.Name, Price: decimal.NewNullDecimal(m.Price)}
}

// ServiceMaterial is a material row joined to the service it is attached to.
type ServiceMaterial struct {
	ServiceID int `db:"service_id" json:"-"`
	Material
}
