package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const pricingTypeColumns = `id, name, slug, description, is_range, is_active, sort_order, created_at, updated_at`

// PricingTypeRepository handles data access for pricing types.
type PricingTypeRepository struct {
	db *sqlx.DB
}

// NewPricingTypeRepository creates a new PricingTypeRepository.
func NewPricingTypeRepository(db *sqlx.DB) *PricingTypeRepository {
	return &PricingTypeRepository{db: db}
}

// List returns pricing types ordered for display.
func (r *PricingTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.PricingType, error) {
	q := `SELECT ` + pricingTypeColumns + ` FROM pricing_types`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY sort_order, name`
	list := []models.PricingType{}
	if err := r.db.SelectContext(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns a pricing type by id.
func (r *PricingTypeRepository) GetByID(ctx context.Context, id int) (*models.PricingType, error) {
	var pt models.PricingType
	if err := r.db.GetContext(ctx, &pt, `SELECT `+pricingTypeColumns+` FROM pricing_types WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &pt, nil
}

// CountByIDs returns how many of ids exist.
func (r *PricingTypeRepository) CountByIDs(ctx context.Context, ids []int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pricing_types WHERE id = ANY($1)`, intArray(ids))
	return n, err
}

// NameOrSlugExists reports whether another pricing type already uses the name or slug.
func (r *PricingTypeRepository) NameOrSlugExists(ctx context.Context, name, slug string, exceptID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM pricing_types WHERE (LOWER(name) = LOWER($1) OR slug = $2) AND id <> $3)`,
		name, slug, exceptID)
	return exists, err
}

// Create inserts a pricing type.
func (r *PricingTypeRepository) Create(ctx context.Context, pt *models.PricingType) error {
	const q = `
		INSERT INTO pricing_types (name, slug, description, is_range, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, pt.Name, pt.Slug, pt.Description, pt.IsRange, pt.IsActive, pt.SortOrder).
		Scan(&pt.ID, &pt.CreatedAt, &pt.UpdatedAt)
}

// Update updates a pricing type.
func (r *PricingTypeRepository) Update(ctx context.Context, pt *models.PricingType) error {
	const q = `
		UPDATE pricing_types SET
			name = $2, slug = $3, description = $4, is_range = $5, is_active = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q, pt.ID, pt.Name, pt.Slug, pt.Description, pt.IsRange, pt.IsActive, pt.SortOrder).
		Scan(&pt.UpdatedAt)
}

// Delete removes a pricing type. Its attachments to services and
// variations cascade.
func (r *PricingTypeRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_types WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
