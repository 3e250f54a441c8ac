package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const categoryColumns = `id, name, slug, description, is_active, sort_order, created_at, updated_at`

// CategoryRepository handles data access for categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns categories ordered for display.
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY sort_order, name`
	list := []models.Category{}
	if err := r.db.SelectContext(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	var c models.Category
	if err := r.db.GetContext(ctx, &c, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// SlugExists reports whether another category already uses slug.
func (r *CategoryRepository) SlugExists(ctx context.Context, slug string, exceptID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE slug = $1 AND id <> $2)`, slug, exceptID)
	return exists, err
}

// Create inserts a category.
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	const q = `
		INSERT INTO categories (name, slug, description, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, c.Name, c.Slug, c.Description, c.IsActive, c.SortOrder).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update updates a category.
func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	const q = `
		UPDATE categories SET name = $2, slug = $3, description = $4, is_active = $5, sort_order = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q, c.ID, c.Name, c.Slug, c.Description, c.IsActive, c.SortOrder).
		Scan(&c.UpdatedAt)
}

// Delete removes a category and, by cascade, its services.
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
