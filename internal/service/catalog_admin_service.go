package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/surgeryquote_api/internal/cache"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/pricing"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// CatalogAdminService handles catalog management for the back office.
// Every successful write invalidates the catalog cache.
type CatalogAdminService struct {
	categoryRepo    *repository.CategoryRepository
	serviceRepo     *repository.ServiceRepository
	pricingTypeRepo *repository.PricingTypeRepository
	pricingRepo     *repository.PricingRepository
	materialRepo    *repository.MaterialRepository
	cache           *cache.CatalogCache
}

// NewCatalogAdminService constructs a CatalogAdminService.
func NewCatalogAdminService(
	categoryRepo *repository.CategoryRepository,
	serviceRepo *repository.ServiceRepository,
	pricingTypeRepo *repository.PricingTypeRepository,
	pricingRepo *repository.PricingRepository,
	materialRepo *repository.MaterialRepository,
	catalogCache *cache.CatalogCache,
) *CatalogAdminService {
	return &CatalogAdminService{
		categoryRepo:    categoryRepo,
		serviceRepo:     serviceRepo,
		pricingTypeRepo: pricingTypeRepo,
		pricingRepo:     pricingRepo,
		materialRepo:    materialRepo,
		cache:           catalogCache,
	}
}

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   int     `json:"sortOrder" validate:"gte=0"`
}

// PricingTypeRequest creates or updates a pricing type.
type PricingTypeRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	IsRange     bool    `json:"isRange"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   int     `json:"sortOrder" validate:"gte=0"`
}

// MaterialRequest creates or updates a material.
type MaterialRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"isActive"`
	SortOrder   int             `json:"sortOrder" validate:"gte=0"`
}

// PricingRequest creates or updates a standalone pricing record. Only the
// amount fields matching Type are kept.
type PricingRequest struct {
	Name           string           `json:"name" validate:"required,max=255"`
	Description    *string          `json:"description"`
	Type           string           `json:"type" validate:"required,oneof=flat range percentage"`
	FlatAmount     *decimal.Decimal `json:"flatAmount"`
	MinAmount      *decimal.Decimal `json:"minAmount"`
	MaxAmount      *decimal.Decimal `json:"maxAmount"`
	PercentageRate *decimal.Decimal `json:"percentageRate"`
	Currency       string           `json:"currency" validate:"omitempty,len=3,alpha"`
	IsExclusive    bool             `json:"isExclusive"`
	IsActive       *bool            `json:"isActive"`
	SortOrder      int              `json:"sortOrder" validate:"gte=0"`
}

// TypePriceRequest is one pricing type price of a service or variation.
type TypePriceRequest struct {
	PricingTypeID int              `json:"pricingTypeId" validate:"min=1"`
	PriceFrom     decimal.Decimal  `json:"priceFrom"`
	PriceTo       *decimal.Decimal `json:"priceTo"`
}

// VariationRequest is one variation of a service pricing edit. ID 0 creates
// a new variation.
type VariationRequest struct {
	ID           int                `json:"id" validate:"gte=0"`
	Name         string             `json:"name" validate:"required,max=255"`
	Description  *string            `json:"description"`
	IsActive     *bool              `json:"isActive"`
	SortOrder    int                `json:"sortOrder" validate:"gte=0"`
	PricingTypes []TypePriceRequest `json:"pricingTypes" validate:"dive"`
}

// FeeRequest attaches a pricing record to a service.
type FeeRequest struct {
	PricingID  int     `json:"pricingId" validate:"min=1"`
	IsRequired bool    `json:"isRequired"`
	Notes      *string `json:"notes"`
}

// ServicePricingRequest replaces the pricing state of a service. Without
// an explicit mode, a non-empty variation list selects variation mode.
type ServicePricingRequest struct {
	PricingMode  string             `json:"pricingMode" validate:"omitempty,oneof=flat variation"`
	PricingTypes []TypePriceRequest `json:"pricingTypes" validate:"dive"`
	MaterialIDs  []int              `json:"materialIds"`
	Variations   []VariationRequest `json:"variations" validate:"dive"`
}

// ServiceRequest creates or updates a service with its pricing and fees.
type ServiceRequest struct {
	CategoryID   int                `json:"categoryId" validate:"min=1"`
	ParentID     *int               `json:"parentId"`
	Name         string             `json:"name" validate:"required,max=255"`
	Description  *string            `json:"description"`
	IsActive     *bool              `json:"isActive"`
	SortOrder    int                `json:"sortOrder" validate:"gte=0"`
	PricingMode  string             `json:"pricingMode" validate:"omitempty,oneof=flat variation"`
	PricingTypes []TypePriceRequest `json:"pricingTypes" validate:"dive"`
	MaterialIDs  []int              `json:"materialIds"`
	Variations   []VariationRequest `json:"variations" validate:"dive"`
	Pricings     []FeeRequest       `json:"pricings" validate:"dive"`
}

func (r *ServiceRequest) pricing() ServicePricingRequest {
	return ServicePricingRequest{
		PricingMode:  r.PricingMode,
		PricingTypes: r.PricingTypes,
		MaterialIDs:  r.MaterialIDs,
		Variations:   r.Variations,
	}
}

// ListCategories returns every category, active or not.
func (s *CatalogAdminService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categoryRepo.List(ctx, false)
}

// CreateCategory creates a category with a unique slug.
func (s *CatalogAdminService) CreateCategory(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(ctx, req.Name, 0, s.categoryRepo.SlugExists)
	if err != nil {
		return nil, err
	}
	c := &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		IsActive:    boolOr(req.IsActive, true),
		SortOrder:   req.SortOrder,
	}
	if err := s.categoryRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	log.Info().Int("category_id", c.ID).Str("name", c.Name).Msg("Category created")
	return c, nil
}

// UpdateCategory updates a category.
func (s *CatalogAdminService) UpdateCategory(ctx context.Context, id int, req *CategoryRequest) (*models.Category, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	c, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, utils.ErrCategoryNotFound)
	}
	if name := strings.TrimSpace(req.Name); name != c.Name {
		if c.Slug, err = uniqueSlug(ctx, name, id, s.categoryRepo.SlugExists); err != nil {
			return nil, err
		}
		c.Name = name
	}
	c.Description = req.Description
	c.IsActive = boolOr(req.IsActive, c.IsActive)
	c.SortOrder = req.SortOrder
	if err := s.categoryRepo.Update(ctx, c); err != nil {
		return nil, notFound(err, utils.ErrCategoryNotFound)
	}
	s.cache.Invalidate(ctx)
	return c, nil
}

// DeleteCategory deletes a category and its services.
func (s *CatalogAdminService) DeleteCategory(ctx context.Context, id int) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrCategoryNotFound)
	}
	s.cache.Invalidate(ctx)
	log.Info().Int("category_id", id).Msg("Category deleted")
	return nil
}

// ListPricingTypes returns every pricing type.
func (s *CatalogAdminService) ListPricingTypes(ctx context.Context) ([]models.PricingType, error) {
	return s.pricingTypeRepo.List(ctx, false)
}

// CreatePricingType creates a pricing type. Names are unique.
func (s *CatalogAdminService) CreatePricingType(ctx context.Context, req *PricingTypeRequest) (*models.PricingType, error) {
	pt := &models.PricingType{}
	if err := s.applyPricingType(ctx, pt, req); err != nil {
		return nil, err
	}
	if err := s.pricingTypeRepo.Create(ctx, pt); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return pt, nil
}

// UpdatePricingType updates a pricing type.
func (s *CatalogAdminService) UpdatePricingType(ctx context.Context, id int, req *PricingTypeRequest) (*models.PricingType, error) {
	pt, err := s.pricingTypeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, utils.ErrPricingTypeNotFound)
	}
	if err := s.applyPricingType(ctx, pt, req); err != nil {
		return nil, err
	}
	if err := s.pricingTypeRepo.Update(ctx, pt); err != nil {
		return nil, notFound(err, utils.ErrPricingTypeNotFound)
	}
	s.cache.Invalidate(ctx)
	return pt, nil
}

func (s *CatalogAdminService) applyPricingType(ctx context.Context, pt *models.PricingType, req *PricingTypeRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	slug := utils.Slugify(name)
	if slug == "" {
		return fieldError("name", "must contain letters or digits")
	}
	taken, err := s.pricingTypeRepo.NameOrSlugExists(ctx, name, slug, pt.ID)
	if err != nil {
		return err
	}
	if taken {
		return fieldError("name", "has already been taken")
	}
	pt.Name = name
	pt.Slug = slug
	pt.Description = req.Description
	pt.IsRange = req.IsRange
	pt.IsActive = boolOr(req.IsActive, pt.ID == 0 || pt.IsActive)
	pt.SortOrder = req.SortOrder
	return nil
}

// DeletePricingType deletes a pricing type; its price attachments cascade.
func (s *CatalogAdminService) DeletePricingType(ctx context.Context, id int) error {
	if err := s.pricingTypeRepo.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrPricingTypeNotFound)
	}
	s.cache.Invalidate(ctx)
	return nil
}

// ListMaterials returns every material.
func (s *CatalogAdminService) ListMaterials(ctx context.Context) ([]models.Material, error) {
	return s.materialRepo.List(ctx, false)
}

// CreateMaterial creates a material.
func (s *CatalogAdminService) CreateMaterial(ctx context.Context, req *MaterialRequest) (*models.Material, error) {
	m := &models.Material{}
	if err := s.applyMaterial(ctx, m, req); err != nil {
		return nil, err
	}
	if err := s.materialRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return m, nil
}

// UpdateMaterial updates a material.
func (s *CatalogAdminService) UpdateMaterial(ctx context.Context, id int, req *MaterialRequest) (*models.Material, error) {
	m, err := s.materialRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, utils.ErrMaterialNotFound)
	}
	if err := s.applyMaterial(ctx, m, req); err != nil {
		return nil, err
	}
	if err := s.materialRepo.Update(ctx, m); err != nil {
		return nil, notFound(err, utils.ErrMaterialNotFound)
	}
	s.cache.Invalidate(ctx)
	return m, nil
}

func (s *CatalogAdminService) applyMaterial(ctx context.Context, m *models.Material, req *MaterialRequest) error {
	ve := utils.NewValidationError()
	if err := utils.ValidateStruct(req); err != nil {
		if !mergeValidation(ve, err) {
			return err
		}
	}
	if req.Price.IsNegative() {
		ve.Add("price", "must be >= 0")
	}
	if ve.HasErrors() {
		return ve
	}

	name := strings.TrimSpace(req.Name)
	if name != m.Name || m.Slug == "" {
		slug, err := uniqueSlug(ctx, name, m.ID, s.materialRepo.SlugExists)
		if err != nil {
			return err
		}
		m.Slug = slug
	}
	m.Name = name
	m.Description = req.Description
	m.Price = req.Price
	m.IsActive = boolOr(req.IsActive, m.ID == 0 || m.IsActive)
	m.SortOrder = req.SortOrder
	return nil
}

// DeleteMaterial deletes a material; service attachments cascade.
func (s *CatalogAdminService) DeleteMaterial(ctx context.Context, id int) error {
	if err := s.materialRepo.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrMaterialNotFound)
	}
	s.cache.Invalidate(ctx)
	return nil
}

// ListPricings returns every pricing record.
func (s *CatalogAdminService) ListPricings(ctx context.Context) ([]models.Pricing, error) {
	return s.pricingRepo.List(ctx, repository.PricingFilter{})
}

// CreatePricing creates a pricing record.
func (s *CatalogAdminService) CreatePricing(ctx context.Context, req *PricingRequest) (*models.Pricing, error) {
	p := &models.Pricing{}
	if err := applyPricing(p, req); err != nil {
		return nil, err
	}
	if err := s.pricingRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return p, nil
}

// UpdatePricing updates a pricing record.
func (s *CatalogAdminService) UpdatePricing(ctx context.Context, id int, req *PricingRequest) (*models.Pricing, error) {
	p, err := s.pricingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, utils.ErrPricingNotFound)
	}
	if err := applyPricing(p, req); err != nil {
		return nil, err
	}
	if err := s.pricingRepo.Update(ctx, p); err != nil {
		return nil, notFound(err, utils.ErrPricingNotFound)
	}
	s.cache.Invalidate(ctx)
	return p, nil
}

// DeletePricing deletes a pricing record; service attachments cascade.
func (s *CatalogAdminService) DeletePricing(ctx context.Context, id int) error {
	if err := s.pricingRepo.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrPricingNotFound)
	}
	s.cache.Invalidate(ctx)
	return nil
}

// applyPricing validates the amounts required by the pricing type and
// copies the request onto p.
func applyPricing(p *models.Pricing, req *PricingRequest) error {
	ve := utils.NewValidationError()
	if err := utils.ValidateStruct(req); err != nil {
		if !mergeValidation(ve, err) {
			return err
		}
	}

	switch pricing.FeeType(req.Type) {
	case pricing.FeeFlat:
		requireAmount(ve, "flatAmount", req.FlatAmount)
	case pricing.FeeRange:
		requireAmount(ve, "minAmount", req.MinAmount)
		requireAmount(ve, "maxAmount", req.MaxAmount)
		if req.MinAmount != nil && req.MaxAmount != nil && req.MaxAmount.LessThan(*req.MinAmount) {
			ve.Add("maxAmount", "must be >= minAmount")
		}
	case pricing.FeePercentage:
		requireAmount(ve, "percentageRate", req.PercentageRate)
		if req.PercentageRate != nil && req.PercentageRate.GreaterThan(hundred) {
			ve.Add("percentageRate", "must be <= 100")
		}
	}
	if ve.HasErrors() {
		return ve
	}

	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.Type = pricing.FeeType(req.Type)
	p.FlatAmount = nullDecimal(req.FlatAmount)
	p.MinAmount = nullDecimal(req.MinAmount)
	p.MaxAmount = nullDecimal(req.MaxAmount)
	p.PercentageRate = nullDecimal(req.PercentageRate)
	p.Currency = strings.ToUpper(req.Currency)
	if p.Currency == "" {
		p.Currency = models.DefaultCurrency
	}
	p.IsExclusive = req.IsExclusive
	p.IsActive = boolOr(req.IsActive, p.ID == 0 || p.IsActive)
	p.SortOrder = req.SortOrder
	p.ClearUnusedAmounts()
	return nil
}

func requireAmount(ve *utils.ValidationError, field string, v *decimal.Decimal) {
	switch {
	case v == nil:
		ve.Add(field, "is required")
	case v.IsNegative():
		ve.Add(field, "must be >= 0")
	}
}

// ListServices returns every service with components and totals.
func (s *CatalogAdminService) ListServices(ctx context.Context, categoryID *int) ([]models.Service, error) {
	list, err := s.serviceRepo.List(ctx, repository.ServiceFilter{CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Service{}
	}
	return list, nil
}

// GetService returns a service including inactive components.
func (s *CatalogAdminService) GetService(ctx context.Context, id int) (*models.Service, error) {
	svc, err := s.serviceRepo.GetByID(ctx, id, false)
	if err != nil {
		return nil, notFound(err, utils.ErrServiceNotFound)
	}
	return svc, nil
}

// CreateService creates a service with its pricing and fees in one
// transaction.
func (s *CatalogAdminService) CreateService(ctx context.Context, req *ServiceRequest) (*models.Service, error) {
	svc := &models.Service{}
	return s.saveService(ctx, svc, req)
}

// UpdateService updates a service and replaces its pricing and fees in one
// transaction.
func (s *CatalogAdminService) UpdateService(ctx context.Context, id int, req *ServiceRequest) (*models.Service, error) {
	svc, err := s.serviceRepo.GetByID(ctx, id, false)
	if err != nil {
		return nil, notFound(err, utils.ErrServiceNotFound)
	}
	return s.saveService(ctx, svc, req)
}

func (s *CatalogAdminService) saveService(ctx context.Context, svc *models.Service, req *ServiceRequest) (*models.Service, error) {
	ve := utils.NewValidationError()
	if err := utils.ValidateStruct(req); err != nil {
		if !mergeValidation(ve, err) {
			return nil, err
		}
	}
	if req.ParentID != nil && svc.ID != 0 && *req.ParentID == svc.ID {
		ve.Add("parentId", "must not reference the service itself")
	}
	pricingState, err := s.buildPricing(ctx, ve, req.pricing())
	if err != nil {
		return nil, err
	}
	fees, err := s.buildFees(ctx, ve, req.Pricings)
	if err != nil {
		return nil, err
	}
	if _, err := s.categoryRepo.GetByID(ctx, req.CategoryID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		ve.Add("categoryId", "does not exist")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	name := strings.TrimSpace(req.Name)
	if name != svc.Name || svc.Slug == "" {
		if svc.Slug, err = uniqueSlug(ctx, name, svc.ID, s.serviceRepo.SlugExists); err != nil {
			return nil, err
		}
	}
	svc.Name = name
	svc.CategoryID = req.CategoryID
	svc.ParentID = req.ParentID
	svc.Description = req.Description
	svc.IsActive = boolOr(req.IsActive, svc.ID == 0 || svc.IsActive)
	svc.SortOrder = req.SortOrder

	if err := s.serviceRepo.Save(ctx, svc, *pricingState, fees); err != nil {
		return nil, mapVariationError(err)
	}
	s.cache.Invalidate(ctx)
	log.Info().
		Int("service_id", svc.ID).
		Str("pricing_mode", string(pricingState.Mode)).
		Int("variations", len(pricingState.Variations)).
		Msg("Service saved")

	return s.GetService(ctx, svc.ID)
}

// UpdateServicePricing switches a service between flat and variation
// pricing. The switch is atomic: on any failure the previous pricing
// remains in place.
func (s *CatalogAdminService) UpdateServicePricing(ctx context.Context, id int, req *ServicePricingRequest) (*models.Service, error) {
	ve := utils.NewValidationError()
	if err := utils.ValidateStruct(req); err != nil {
		if !mergeValidation(ve, err) {
			return nil, err
		}
	}
	pricingState, err := s.buildPricing(ctx, ve, *req)
	if err != nil {
		return nil, err
	}
	if ve.HasErrors() {
		return nil, ve
	}

	if _, err := s.serviceRepo.GetByID(ctx, id, false); err != nil {
		return nil, notFound(err, utils.ErrServiceNotFound)
	}
	if err := s.serviceRepo.ReplacePricing(ctx, id, *pricingState); err != nil {
		return nil, mapVariationError(err)
	}
	s.cache.Invalidate(ctx)
	log.Info().Int("service_id", id).Str("pricing_mode", string(pricingState.Mode)).Msg("Service pricing replaced")
	return s.GetService(ctx, id)
}

// DeleteService deletes a service with its attachments and variations.
func (s *CatalogAdminService) DeleteService(ctx context.Context, id int) error {
	if err := s.serviceRepo.Delete(ctx, id); err != nil {
		return notFound(err, utils.ErrServiceNotFound)
	}
	s.cache.Invalidate(ctx)
	log.Info().Int("service_id", id).Msg("Service deleted")
	return nil
}

// buildPricing resolves the pricing mode and validates prices and
// references. Problems are added to ve; only infrastructure errors are
// returned.
func (s *CatalogAdminService) buildPricing(ctx context.Context, ve *utils.ValidationError, req ServicePricingRequest) (*repository.ServicePricing, error) {
	mode := models.PricingMode(req.PricingMode)
	if mode == "" {
		mode = models.PricingModeFlat
		if len(req.Variations) > 0 {
			mode = models.PricingModeVariation
		}
	}

	out := &repository.ServicePricing{Mode: mode}
	typeIDs := []int{}

	switch mode {
	case models.PricingModeVariation:
		if len(req.Variations) == 0 {
			ve.Add("variations", "is required in variation mode")
		}
		seen := map[int]bool{}
		for i, v := range req.Variations {
			if v.ID != 0 {
				if seen[v.ID] {
					ve.Add(fmt.Sprintf("variations[%d].id", i), "is duplicated")
				}
				seen[v.ID] = true
			}
			prefix := fmt.Sprintf("variations[%d].pricingTypes", i)
			prices := validatePrices(ve, prefix, v.PricingTypes)
			typeIDs = append(typeIDs, lo.Map(prices, func(p repository.TypePrice, _ int) int { return p.PricingTypeID })...)
			out.Variations = append(out.Variations, repository.VariationSpec{
				ID:          v.ID,
				Name:        strings.TrimSpace(v.Name),
				Description: v.Description,
				IsActive:    boolOr(v.IsActive, true),
				SortOrder:   v.SortOrder,
				Prices:      prices,
			})
		}
	default:
		if len(req.Variations) > 0 {
			ve.Add("variations", "must be empty in flat mode")
		}
		out.Prices = validatePrices(ve, "pricingTypes", req.PricingTypes)
		typeIDs = lo.Map(out.Prices, func(p repository.TypePrice, _ int) int { return p.PricingTypeID })
		out.MaterialIDs = lo.Uniq(req.MaterialIDs)
	}

	if ids := lo.Uniq(typeIDs); len(ids) > 0 {
		n, err := s.pricingTypeRepo.CountByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if n != len(ids) {
			ve.Add("pricingTypes", "references unknown pricing types")
		}
	}
	if len(out.MaterialIDs) > 0 {
		n, err := s.materialRepo.CountByIDs(ctx, out.MaterialIDs)
		if err != nil {
			return nil, err
		}
		if n != len(out.MaterialIDs) {
			ve.Add("materialIds", "references unknown materials")
		}
	}
	return out, nil
}

func (s *CatalogAdminService) buildFees(ctx context.Context, ve *utils.ValidationError, reqs []FeeRequest) ([]repository.FeeAttachment, error) {
	fees := lo.Map(reqs, func(f FeeRequest, _ int) repository.FeeAttachment {
		return repository.FeeAttachment{PricingID: f.PricingID, IsRequired: f.IsRequired, Notes: f.Notes}
	})
	ids := lo.Uniq(lo.Map(fees, func(f repository.FeeAttachment, _ int) int { return f.PricingID }))
	if len(ids) == 0 {
		return fees, nil
	}
	n, err := s.pricingRepo.CountByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if n != len(ids) {
		ve.Add("pricings", "references unknown pricing records")
	}
	return fees, nil
}

// validatePrices checks one owner's price list: non-negative bounds, an
// upper bound not below the lower one, and each pricing type at most once.
func validatePrices(ve *utils.ValidationError, prefix string, reqs []TypePriceRequest) []repository.TypePrice {
	out := make([]repository.TypePrice, 0, len(reqs))
	seen := map[int]bool{}
	for i, r := range reqs {
		key := fmt.Sprintf("%s[%d]", prefix, i)
		if seen[r.PricingTypeID] {
			ve.Add(key+".pricingTypeId", "is duplicated")
		}
		seen[r.PricingTypeID] = true
		if r.PriceFrom.IsNegative() {
			ve.Add(key+".priceFrom", "must be >= 0")
		}
		if r.PriceTo != nil && r.PriceTo.LessThan(r.PriceFrom) {
			ve.Add(key+".priceTo", "must be >= priceFrom")
		}
		out = append(out, repository.TypePrice{
			PricingTypeID: r.PricingTypeID,
			PriceFrom:     r.PriceFrom,
			PriceTo:       nullDecimal(r.PriceTo),
		})
	}
	return out
}

func mapVariationError(err error) error {
	if errors.Is(err, utils.ErrVariationNotFound) {
		return fieldError("variations", "references a variation that does not belong to this service")
	}
	return err
}

// uniqueSlug derives a slug from name, suffixing -2, -3, ... on collision.
func uniqueSlug(ctx context.Context, name string, exceptID int, exists func(context.Context, string, int) (bool, error)) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		return "", fieldError("name", "must contain letters or digits")
	}
	slug := base
	for i := 2; i < 100; i++ {
		taken, err := exists(ctx, slug, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("slug %q: %w", base, utils.ErrDuplicateName)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func fieldError(field, message string) error {
	ve := utils.NewValidationError()
	ve.Add(field, message)
	return ve
}

// mergeValidation folds a *ValidationError into ve and reports whether err
// was one.
func mergeValidation(ve *utils.ValidationError, err error) bool {
	verr, ok := utils.AsValidationError(err)
	if !ok {
		return false
	}
	ve.Merge(verr.Fields)
	return true
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
