package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// CatalogHandler serves the public, priced catalog.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListCategories handles GET /v1/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve categories")
		return
	}
	utils.Success(c, 200, "Categories retrieved", categories)
}

// ListServices handles GET /v1/services
func (h *CatalogHandler) ListServices(c *gin.Context) {
	h.listServices(c, 0)
}

// ListServicesByCategory handles GET /v1/services/category/:categoryId
func (h *CatalogHandler) ListServicesByCategory(c *gin.Context) {
	categoryID, ok := paramID(c, "categoryId")
	if !ok {
		return
	}
	h.listServices(c, categoryID)
}

func (h *CatalogHandler) listServices(c *gin.Context, categoryID int) {
	services, err := h.catalogService.ListServices(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, err, "Failed to retrieve services")
		return
	}
	utils.Success(c, 200, "Services retrieved", services)
}

// GetService handles GET /v1/services/:id
func (h *CatalogHandler) GetService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	svc, err := h.catalogService.GetService(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve service")
		return
	}
	utils.Success(c, 200, "Service retrieved", svc)
}

// ListPricingTypes handles GET /v1/pricing-types
func (h *CatalogHandler) ListPricingTypes(c *gin.Context) {
	types, err := h.catalogService.ListPricingTypes(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve pricing types")
		return
	}
	utils.Success(c, 200, "Pricing types retrieved", types)
}

// ListMaterials handles GET /v1/materials
func (h *CatalogHandler) ListMaterials(c *gin.Context) {
	materials, err := h.catalogService.ListMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve materials")
		return
	}
	utils.Success(c, 200, "Materials retrieved", materials)
}

// ListPricings handles GET /v1/pricings
func (h *CatalogHandler) ListPricings(c *gin.Context) {
	h.listPricings(c, false)
}

// ListGeneralPricings handles GET /v1/pricings/general
func (h *CatalogHandler) ListGeneralPricings(c *gin.Context) {
	h.listPricings(c, true)
}

func (h *CatalogHandler) listPricings(c *gin.Context, generalOnly bool) {
	pricings, err := h.catalogService.ListPricings(c.Request.Context(), generalOnly)
	if err != nil {
		respondError(c, err, "Failed to retrieve pricings")
		return
	}
	utils.Success(c, 200, "Pricings retrieved", pricings)
}
