package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const materialColumns = `id, name, slug, description, price, is_active, sort_order, created_at, updated_at`

// MaterialRepository handles data access for materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new MaterialRepository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// List returns materials ordered for display.
func (r *MaterialRepository) List(ctx context.Context, activeOnly bool) ([]models.Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY sort_order, name`
	list := []models.Material{}
	if err := r.db.SelectContext(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns a material by id.
func (r *MaterialRepository) GetByID(ctx context.Context, id int) (*models.Material, error) {
	var m models.Material
	if err := r.db.GetContext(ctx, &m, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// CountByIDs returns how many of ids exist.
func (r *MaterialRepository) CountByIDs(ctx context.Context, ids []int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM materials WHERE id = ANY($1)`, intArray(ids))
	return n, err
}

// SlugExists reports whether another material already uses slug.
func (r *MaterialRepository) SlugExists(ctx context.Context, slug string, exceptID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM materials WHERE slug = $1 AND id <> $2)`, slug, exceptID)
	return exists, err
}

// Create inserts a material.
func (r *MaterialRepository) Create(ctx context.Context, m *models.Material) error {
	const q = `
		INSERT INTO materials (name, slug, description, price, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, m.Name, m.Slug, m.Description, m.Price, m.IsActive, m.SortOrder).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// Update updates a material.
func (r *MaterialRepository) Update(ctx context.Context, m *models.Material) error {
	const q = `
		UPDATE materials SET
			name = $2, slug = $3, description = $4, price = $5, is_active = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q, m.ID, m.Name, m.Slug, m.Description, m.Price, m.IsActive, m.SortOrder).
		Scan(&m.UpdatedAt)
}

// Delete removes a material; service attachments cascade.
func (r *MaterialRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
