package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/surgeryquote_api/internal/database"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

const serviceColumns = `id, category_id, parent_id, name, slug, description, pricing_mode, is_active, sort_order, created_at, updated_at`

// TypePrice is a pricing type with its per-subject price.
type TypePrice struct {
	PricingTypeID int
	PriceFrom     decimal.Decimal
	PriceTo       decimal.NullDecimal
}

// VariationSpec describes one variation of a service pricing edit.
// ID 0 creates a new variation.
type VariationSpec struct {
	ID          int
	Name        string
	Description *string
	IsActive    bool
	SortOrder   int
	Prices      []TypePrice
}

// ServicePricing is the full pricing state written by an admin edit.
// In flat mode Variations is ignored; in variation mode Prices and
// MaterialIDs are ignored and cleared.
type ServicePricing struct {
	Mode        models.PricingMode
	Prices      []TypePrice
	MaterialIDs []int
	Variations  []VariationSpec
}

// FeeAttachment attaches a pricing record to a service.
type FeeAttachment struct {
	PricingID  int
	IsRequired bool
	Notes      *string
}

// ServiceFilter narrows service listings.
type ServiceFilter struct {
	CategoryID *int
	ActiveOnly bool
}

// ServiceRepository handles data access for services and their pricing
// attachments.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository creates a new ServiceRepository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// List returns services with their relations loaded.
func (r *ServiceRepository) List(ctx context.Context, filter ServiceFilter) ([]models.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	args := []interface{}{}
	argIdx := 1
	if filter.CategoryID != nil {
		q += fmt.Sprintf(" AND category_id = $%d", argIdx)
		args = append(args, *filter.CategoryID)
		argIdx++
	}
	if filter.ActiveOnly {
		q += " AND is_active = TRUE"
	}
	q += " ORDER BY sort_order, name"

	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, q, args...); err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, services, filter.ActiveOnly); err != nil {
		return nil, err
	}
	return services, nil
}

// GetByID returns a service with its relations loaded.
func (r *ServiceRepository) GetByID(ctx context.Context, id int, activeOnly bool) (*models.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	if activeOnly {
		q += " AND is_active = TRUE"
	}
	var svc models.Service
	if err := r.db.GetContext(ctx, &svc, q, id); err != nil {
		return nil, err
	}
	list := []models.Service{svc}
	if err := r.loadRelations(ctx, list, activeOnly); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListVariations returns the variations of a service without their prices.
func (r *ServiceRepository) ListVariations(ctx context.Context, serviceID int) ([]models.ServiceVariation, error) {
	var out []models.ServiceVariation
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, service_id, name, description, is_active, sort_order, created_at, updated_at
		FROM service_variations WHERE service_id = $1 ORDER BY sort_order, id`, serviceID)
	return out, err
}

// CountOwnAttachments returns the number of pricing type and material
// attachments held directly by the service.
func (r *ServiceRepository) CountOwnAttachments(ctx context.Context, serviceID int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT (SELECT COUNT(*) FROM service_pricing_types WHERE service_id = $1)
		     + (SELECT COUNT(*) FROM service_materials WHERE service_id = $1)`, serviceID)
	return n, err
}

// Save creates (ID == 0) or updates the service and replaces its pricing
// state and fee attachments in one transaction.
func (r *ServiceRepository) Save(ctx context.Context, svc *models.Service, p ServicePricing, fees []FeeAttachment) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if svc.ID == 0 {
			if err := insertService(ctx, tx, svc); err != nil {
				return err
			}
		} else if err := updateService(ctx, tx, svc); err != nil {
			return err
		}
		if err := replacePricing(ctx, tx, svc.ID, p); err != nil {
			return err
		}
		svc.PricingMode = p.Mode
		return replaceFees(ctx, tx, svc.ID, fees)
	})
}

// ReplacePricing switches the pricing state of an existing service atomically.
func (r *ServiceRepository) ReplacePricing(ctx context.Context, serviceID int, p ServicePricing) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return replacePricing(ctx, tx, serviceID, p)
	})
}

// Delete removes a service; attachments and variations cascade.
func (r *ServiceRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SlugExists reports whether another service already uses slug.
func (r *ServiceRepository) SlugExists(ctx context.Context, slug string, exceptID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM services WHERE slug = $1 AND id <> $2)`, slug, exceptID)
	return exists, err
}

func insertService(ctx context.Context, tx *sqlx.Tx, svc *models.Service) error {
	const q = `
		INSERT INTO services (category_id, parent_id, name, slug, description, pricing_mode, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return tx.QueryRowxContext(ctx, q,
		svc.CategoryID, svc.ParentID, svc.Name, svc.Slug, svc.Description, models.PricingModeFlat, svc.IsActive, svc.SortOrder,
	).Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
}

func updateService(ctx context.Context, tx *sqlx.Tx, svc *models.Service) error {
	const q = `
		UPDATE services SET
			category_id = $2,
			parent_id = $3,
			name = $4,
			slug = $5,
			description = $6,
			is_active = $7,
			sort_order = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := tx.QueryRowxContext(ctx, q,
		svc.ID, svc.CategoryID, svc.ParentID, svc.Name, svc.Slug, svc.Description, svc.IsActive, svc.SortOrder,
	).Scan(&svc.UpdatedAt)
	if err == sql.ErrNoRows {
		return utils.ErrServiceNotFound
	}
	return err
}

func replacePricing(ctx context.Context, tx *sqlx.Tx, serviceID int, p ServicePricing) error {
	if !p.Mode.Valid() {
		return fmt.Errorf("unknown pricing mode %q", p.Mode)
	}

	// Both modes drop the service's own attachments; flat mode re-inserts them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_pricing_types WHERE service_id = $1`, serviceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_materials WHERE service_id = $1`, serviceID); err != nil {
		return err
	}

	if p.Mode == models.PricingModeFlat {
		if _, err := tx.ExecContext(ctx, `DELETE FROM service_variations WHERE service_id = $1`, serviceID); err != nil {
			return err
		}
		for _, price := range p.Prices {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO service_pricing_types (service_id, pricing_type_id, price_from, price_to)
				VALUES ($1, $2, $3, $4)`,
				serviceID, price.PricingTypeID, price.PriceFrom, price.PriceTo); err != nil {
				return err
			}
		}
		for _, materialID := range lo.Uniq(p.MaterialIDs) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO service_materials (service_id, material_id) VALUES ($1, $2)`,
				serviceID, materialID); err != nil {
				return err
			}
		}
	} else if err := syncVariations(ctx, tx, serviceID, p.Variations); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE services SET pricing_mode = $2, updated_at = NOW() WHERE id = $1`, serviceID, p.Mode)
	return err
}

// syncVariations upserts specs by id and deletes variations missing from specs.
func syncVariations(ctx context.Context, tx *sqlx.Tx, serviceID int, specs []VariationSpec) error {
	var existing []int
	if err := tx.SelectContext(ctx, &existing,
		`SELECT id FROM service_variations WHERE service_id = $1`, serviceID); err != nil {
		return err
	}

	kept := make([]int, 0, len(specs))
	for _, spec := range specs {
		id := spec.ID
		if id != 0 {
			if !lo.Contains(existing, id) {
				return fmt.Errorf("variation %d of service %d: %w", id, serviceID, utils.ErrVariationNotFound)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE service_variations SET
					name = $3, description = $4, is_active = $5, sort_order = $6, updated_at = NOW()
				WHERE id = $1 AND service_id = $2`,
				id, serviceID, spec.Name, spec.Description, spec.IsActive, spec.SortOrder); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM variation_pricing_types WHERE variation_id = $1`, id); err != nil {
				return err
			}
		} else if err := tx.QueryRowxContext(ctx, `
			INSERT INTO service_variations (service_id, name, description, is_active, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			serviceID, spec.Name, spec.Description, spec.IsActive, spec.SortOrder).Scan(&id); err != nil {
			return err
		}
		kept = append(kept, id)

		for _, price := range spec.Prices {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO variation_pricing_types (variation_id, pricing_type_id, price_from, price_to)
				VALUES ($1, $2, $3, $4)`,
				id, price.PricingTypeID, price.PriceFrom, price.PriceTo); err != nil {
				return err
			}
		}
	}

	removed := lo.Without(existing, kept...)
	if len(removed) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM service_variations WHERE service_id = $1 AND id = ANY($2)`, serviceID, pq.Array(toInt64(removed)))
	return err
}

func replaceFees(ctx context.Context, tx *sqlx.Tx, serviceID int, fees []FeeAttachment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_pricings WHERE service_id = $1`, serviceID); err != nil {
		return err
	}
	fees = lo.UniqBy(fees, func(f FeeAttachment) int { return f.PricingID })
	for _, f := range fees {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO service_pricings (service_id, pricing_id, is_required, notes)
			VALUES ($1, $2, $3, $4)`,
			serviceID, f.PricingID, f.IsRequired, f.Notes); err != nil {
			return err
		}
	}
	return nil
}

// loadRelations fills categories, attachments, materials, fees and variations
// of services with one query per relation.
func (r *ServiceRepository) loadRelations(ctx context.Context, services []models.Service, activeOnly bool) error {
	if len(services) == 0 {
		return nil
	}
	ids := pq.Array(toInt64(lo.Map(services, func(s models.Service, _ int) int { return s.ID })))
	categoryIDs := pq.Array(toInt64(lo.Uniq(lo.Map(services, func(s models.Service, _ int) int { return s.CategoryID }))))

	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, `
		SELECT id, name, slug, description, is_active, sort_order, created_at, updated_at
		FROM categories WHERE id = ANY($1)`, categoryIDs); err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	var attachments []models.TypeAttachment
	if err := r.db.SelectContext(ctx, &attachments, `
		SELECT spt.service_id AS owner_id, spt.pricing_type_id, pt.name, pt.slug, pt.is_range, spt.price_from, spt.price_to
		FROM service_pricing_types spt
		JOIN pricing_types pt ON pt.id = spt.pricing_type_id
		WHERE spt.service_id = ANY($1) AND ($2 = FALSE OR pt.is_active)
		ORDER BY pt.sort_order, pt.name`, ids, activeOnly); err != nil {
		return fmt.Errorf("load pricing types: %w", err)
	}

	var materials []models.ServiceMaterial
	if err := r.db.SelectContext(ctx, &materials, `
		SELECT sm.service_id, m.id, m.name, m.slug, m.description, m.price, m.is_active, m.sort_order, m.created_at, m.updated_at
		FROM service_materials sm
		JOIN materials m ON m.id = sm.material_id
		WHERE sm.service_id = ANY($1) AND ($2 = FALSE OR m.is_active)
		ORDER BY m.sort_order, m.name`, ids, activeOnly); err != nil {
		return fmt.Errorf("load materials: %w", err)
	}

	var fees []models.ServiceFee
	if err := r.db.SelectContext(ctx, &fees, `
		SELECT sp.service_id, sp.is_required, sp.notes, `+prefixed("p", pricingColumns)+`
		FROM service_pricings sp
		JOIN pricings p ON p.id = sp.pricing_id
		WHERE sp.service_id = ANY($1) AND ($2 = FALSE OR p.is_active)
		ORDER BY p.sort_order, p.name`, ids, activeOnly); err != nil {
		return fmt.Errorf("load pricings: %w", err)
	}

	var variations []models.ServiceVariation
	if err := r.db.SelectContext(ctx, &variations, `
		SELECT id, service_id, name, description, is_active, sort_order, created_at, updated_at
		FROM service_variations
		WHERE service_id = ANY($1) AND ($2 = FALSE OR is_active)
		ORDER BY sort_order, id`, ids, activeOnly); err != nil {
		return fmt.Errorf("load variations: %w", err)
	}

	var variationPrices []models.TypeAttachment
	if len(variations) > 0 {
		variationIDs := pq.Array(toInt64(lo.Map(variations, func(v models.ServiceVariation, _ int) int { return v.ID })))
		if err := r.db.SelectContext(ctx, &variationPrices, `
			SELECT vpt.variation_id AS owner_id, vpt.pricing_type_id, pt.name, pt.slug, pt.is_range, vpt.price_from, vpt.price_to
			FROM variation_pricing_types vpt
			JOIN pricing_types pt ON pt.id = vpt.pricing_type_id
			WHERE vpt.variation_id = ANY($1) AND ($2 = FALSE OR pt.is_active)
			ORDER BY pt.sort_order, pt.name`, variationIDs, activeOnly); err != nil {
			return fmt.Errorf("load variation pricing types: %w", err)
		}
	}

	categoryByID := lo.KeyBy(categories, func(c models.Category) int { return c.ID })
	attachmentsByOwner := lo.GroupBy(attachments, func(a models.TypeAttachment) int { return a.OwnerID })
	materialsByService := lo.GroupBy(materials, func(m models.ServiceMaterial) int { return m.ServiceID })
	feesByService := lo.GroupBy(fees, func(f models.ServiceFee) int { return f.ServiceID })
	pricesByVariation := lo.GroupBy(variationPrices, func(a models.TypeAttachment) int { return a.OwnerID })
	for i := range variations {
		variations[i].PricingTypes = orEmpty(pricesByVariation[variations[i].ID])
	}
	variationsByService := lo.GroupBy(variations, func(v models.ServiceVariation) int { return v.ServiceID })

	for i := range services {
		s := &services[i]
		if c, ok := categoryByID[s.CategoryID]; ok {
			c := c
			s.Category = &c
		}
		s.PricingTypes = orEmpty(attachmentsByOwner[s.ID])
		s.Materials = lo.Map(materialsByService[s.ID], func(m models.ServiceMaterial, _ int) models.Material { return m.Material })
		s.Fees = orEmpty(feesByService[s.ID])
		s.Variations = orEmpty(variationsByService[s.ID])
		s.ComputeTotals()
	}
	return nil
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func toInt64(in []int) []int64 {
	return lo.Map(in, func(v int, _ int) int64 { return int64(v) })
}

func intArray(in []int) interface{} {
	return pq.Array(toInt64(in))
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
