package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const pricingColumns = `id, name, description, type, flat_amount, min_amount, max_amount, percentage_rate, currency, is_exclusive, is_active, sort_order, created_at, updated_at`

// PricingFilter narrows pricing listings.
type PricingFilter struct {
	ActiveOnly  bool
	GeneralOnly bool
}

// PricingRepository handles data access for standalone pricing records.
type PricingRepository struct {
	db *sqlx.DB
}

// NewPricingRepository creates a new PricingRepository.
func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// List returns pricing records ordered for display.
func (r *PricingRepository) List(ctx context.Context, filter PricingFilter) ([]models.Pricing, error) {
	q := `SELECT ` + pricingColumns + ` FROM pricings WHERE 1=1`
	if filter.ActiveOnly {
		q += ` AND is_active = TRUE`
	}
	if filter.GeneralOnly {
		q += ` AND is_exclusive = FALSE`
	}
	q += ` ORDER BY sort_order, name`
	list := []models.Pricing{}
	if err := r.db.SelectContext(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns a pricing record by id.
func (r *PricingRepository) GetByID(ctx context.Context, id int) (*models.Pricing, error) {
	var p models.Pricing
	if err := r.db.GetContext(ctx, &p, `SELECT `+pricingColumns+` FROM pricings WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// CountByIDs returns how many of ids exist.
func (r *PricingRepository) CountByIDs(ctx context.Context, ids []int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pricings WHERE id = ANY($1)`, intArray(ids))
	return n, err
}

// Create inserts a pricing record.
func (r *PricingRepository) Create(ctx context.Context, p *models.Pricing) error {
	const q = `
		INSERT INTO pricings (
			name, description, type, flat_amount, min_amount, max_amount, percentage_rate,
			currency, is_exclusive, is_active, sort_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		p.Name, p.Description, p.Type, p.FlatAmount, p.MinAmount, p.MaxAmount, p.PercentageRate,
		p.Currency, p.IsExclusive, p.IsActive, p.SortOrder,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update updates a pricing record.
func (r *PricingRepository) Update(ctx context.Context, p *models.Pricing) error {
	const q = `
		UPDATE pricings SET
			name = $2,
			description = $3,
			type = $4,
			flat_amount = $5,
			min_amount = $6,
			max_amount = $7,
			percentage_rate = $8,
			currency = $9,
			is_exclusive = $10,
			is_active = $11,
			sort_order = $12,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q,
		p.ID, p.Name, p.Description, p.Type, p.FlatAmount, p.MinAmount, p.MaxAmount, p.PercentageRate,
		p.Currency, p.IsExclusive, p.IsActive, p.SortOrder,
	).Scan(&p.UpdatedAt)
}

// Delete removes a pricing record; service attachments cascade.
func (r *PricingRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
