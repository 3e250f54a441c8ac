package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/cache"
	"github.com/GTDGit/surgeryquote_api/internal/metrics"
	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/pricing"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// CatalogService serves the priced public catalog.
type CatalogService struct {
	categoryRepo    *repository.CategoryRepository
	serviceRepo     *repository.ServiceRepository
	pricingTypeRepo *repository.PricingTypeRepository
	pricingRepo     *repository.PricingRepository
	materialRepo    *repository.MaterialRepository
	cache           *cache.CatalogCache
}

// NewCatalogService constructs a CatalogService. catalogCache may be nil.
func NewCatalogService(
	categoryRepo *repository.CategoryRepository,
	serviceRepo *repository.ServiceRepository,
	pricingTypeRepo *repository.PricingTypeRepository,
	pricingRepo *repository.PricingRepository,
	materialRepo *repository.MaterialRepository,
	catalogCache *cache.CatalogCache,
) *CatalogService {
	return &CatalogService{
		categoryRepo:    categoryRepo,
		serviceRepo:     serviceRepo,
		pricingTypeRepo: pricingTypeRepo,
		pricingRepo:     pricingRepo,
		materialRepo:    materialRepo,
		cache:           catalogCache,
	}
}

// Quote is the live-catalog pricing of one service, or one of its
// variations, copied onto a new submission.
type Quote struct {
	Category  string
	Procedure string
	Variant   *string
	Snapshot  pricing.Snapshot
}

// ListCategories returns active categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	key := cache.CategoriesKey()
	var cached []models.Category
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	list, err := s.categoryRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, key, list)
	return list, nil
}

// ListServices returns active services with components and totals. A zero
// categoryID lists every category.
func (s *CatalogService) ListServices(ctx context.Context, categoryID int) ([]models.Service, error) {
	key := cache.ServicesKey(categoryID)
	var cached []models.Service
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	filter := repository.ServiceFilter{ActiveOnly: true}
	if categoryID != 0 {
		if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, utils.ErrCategoryNotFound
			}
			return nil, err
		}
		filter.CategoryID = &categoryID
	}

	list, err := s.serviceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Service{}
	}
	s.toCache(ctx, key, list)
	return list, nil
}

// GetService returns one active service.
func (s *CatalogService) GetService(ctx context.Context, id int) (*models.Service, error) {
	svc, err := s.serviceRepo.GetByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrServiceNotFound
		}
		return nil, err
	}
	return svc, nil
}

// ListPricingTypes returns active pricing types.
func (s *CatalogService) ListPricingTypes(ctx context.Context) ([]models.PricingType, error) {
	return s.pricingTypeRepo.List(ctx, true)
}

// ListMaterials returns active materials.
func (s *CatalogService) ListMaterials(ctx context.Context) ([]models.Material, error) {
	return s.materialRepo.List(ctx, true)
}

// ListPricings returns active pricing records; generalOnly drops the
// service-exclusive ones.
func (s *CatalogService) ListPricings(ctx context.Context, generalOnly bool) ([]models.Pricing, error) {
	return s.pricingRepo.List(ctx, repository.PricingFilter{ActiveOnly: true, GeneralOnly: generalOnly})
}

// Quote prices a service as it stands now. Without a variation, a service
// in variation mode is quoted as the span of its variations with no line
// items.
func (s *CatalogService) Quote(ctx context.Context, serviceID int, variationID *int) (*Quote, error) {
	svc, err := s.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	q := &Quote{Procedure: svc.Name}
	if svc.Category != nil {
		q.Category = svc.Category.Name
	}

	switch {
	case variationID != nil:
		v, ok := svc.Variation(*variationID)
		if !ok {
			return nil, fmt.Errorf("variation %d of service %d: %w", *variationID, serviceID, utils.ErrVariationNotFound)
		}
		name := v.Name
		q.Variant = &name
		q.Snapshot = pricing.SnapshotOf(svc.LineItems(&v))
		q.Snapshot.Total.Incomplete = q.Snapshot.Total.Incomplete || v.TotalPrice.Incomplete
	case svc.InVariationMode():
		q.Snapshot = pricing.Snapshot{Items: []pricing.LineItem{}, Total: svc.TotalPrice}
	default:
		q.Snapshot = pricing.SnapshotOf(svc.LineItems(nil))
		q.Snapshot.Total.Incomplete = q.Snapshot.Total.Incomplete || svc.TotalPrice.Incomplete
	}
	if q.Snapshot.Items == nil {
		q.Snapshot.Items = []pricing.LineItem{}
	}
	return q, nil
}

func (s *CatalogService) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed")
		return false
	}
	if hit {
		metrics.CatalogCache.WithLabelValues("hit").Inc()
	} else {
		metrics.CatalogCache.WithLabelValues("miss").Inc()
	}
	return hit
}

func (s *CatalogService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Catalog cache write failed")
	}
}
