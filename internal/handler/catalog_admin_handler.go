package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// CatalogAdminHandler handles catalog management HTTP endpoints.
type CatalogAdminHandler struct {
	adminService *service.CatalogAdminService
}

// NewCatalogAdminHandler constructs a CatalogAdminHandler.
func NewCatalogAdminHandler(adminService *service.CatalogAdminService) *CatalogAdminHandler {
	return &CatalogAdminHandler{adminService: adminService}
}

// ListCategories handles GET /v1/admin/categories
func (h *CatalogAdminHandler) ListCategories(c *gin.Context) {
	list, err := h.adminService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve categories")
		return
	}
	utils.Success(c, 200, "Categories retrieved", list)
}

// CreateCategory handles POST /v1/admin/categories
func (h *CatalogAdminHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.adminService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create category")
		return
	}
	utils.Success(c, 201, "Category created successfully", category)
}

// UpdateCategory handles PUT /v1/admin/categories/:id
func (h *CatalogAdminHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.adminService.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update category")
		return
	}
	utils.Success(c, 200, "Category updated successfully", category)
}

// DeleteCategory handles DELETE /v1/admin/categories/:id
func (h *CatalogAdminHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete category")
		return
	}
	utils.Success(c, 200, "Category deleted successfully", nil)
}

// ListPricingTypes handles GET /v1/admin/pricing-types
func (h *CatalogAdminHandler) ListPricingTypes(c *gin.Context) {
	list, err := h.adminService.ListPricingTypes(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve pricing types")
		return
	}
	utils.Success(c, 200, "Pricing types retrieved", list)
}

// CreatePricingType handles POST /v1/admin/pricing-types
func (h *CatalogAdminHandler) CreatePricingType(c *gin.Context) {
	var req service.PricingTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	pt, err := h.adminService.CreatePricingType(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create pricing type")
		return
	}
	utils.Success(c, 201, "Pricing type created successfully", pt)
}

// UpdatePricingType handles PUT /v1/admin/pricing-types/:id
func (h *CatalogAdminHandler) UpdatePricingType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PricingTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	pt, err := h.adminService.UpdatePricingType(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update pricing type")
		return
	}
	utils.Success(c, 200, "Pricing type updated successfully", pt)
}

// DeletePricingType handles DELETE /v1/admin/pricing-types/:id
func (h *CatalogAdminHandler) DeletePricingType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeletePricingType(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete pricing type")
		return
	}
	utils.Success(c, 200, "Pricing type deleted successfully", nil)
}

// ListMaterials handles GET /v1/admin/materials
func (h *CatalogAdminHandler) ListMaterials(c *gin.Context) {
	list, err := h.adminService.ListMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve materials")
		return
	}
	utils.Success(c, 200, "Materials retrieved", list)
}

// CreateMaterial handles POST /v1/admin/materials
func (h *CatalogAdminHandler) CreateMaterial(c *gin.Context) {
	var req service.MaterialRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.adminService.CreateMaterial(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create material")
		return
	}
	utils.Success(c, 201, "Material created successfully", m)
}

// UpdateMaterial handles PUT /v1/admin/materials/:id
func (h *CatalogAdminHandler) UpdateMaterial(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.MaterialRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.adminService.UpdateMaterial(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update material")
		return
	}
	utils.Success(c, 200, "Material updated successfully", m)
}

// DeleteMaterial handles DELETE /v1/admin/materials/:id
func (h *CatalogAdminHandler) DeleteMaterial(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeleteMaterial(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete material")
		return
	}
	utils.Success(c, 200, "Material deleted successfully", nil)
}

// ListPricings handles GET /v1/admin/pricings
func (h *CatalogAdminHandler) ListPricings(c *gin.Context) {
	list, err := h.adminService.ListPricings(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve pricings")
		return
	}
	utils.Success(c, 200, "Pricings retrieved", list)
}

// CreatePricing handles POST /v1/admin/pricings
func (h *CatalogAdminHandler) CreatePricing(c *gin.Context) {
	var req service.PricingRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.adminService.CreatePricing(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create pricing")
		return
	}
	utils.Success(c, 201, "Pricing created successfully", p)
}

// UpdatePricing handles PUT /v1/admin/pricings/:id
func (h *CatalogAdminHandler) UpdatePricing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PricingRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.adminService.UpdatePricing(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update pricing")
		return
	}
	utils.Success(c, 200, "Pricing updated successfully", p)
}

// DeletePricing handles DELETE /v1/admin/pricings/:id
func (h *CatalogAdminHandler) DeletePricing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeletePricing(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete pricing")
		return
	}
	utils.Success(c, 200, "Pricing deleted successfully", nil)
}

// ListServices handles GET /v1/admin/services
func (h *CatalogAdminHandler) ListServices(c *gin.Context) {
	var categoryID *int
	if raw := c.Query("categoryId"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			categoryID = &id
		}
	}
	list, err := h.adminService.ListServices(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, err, "Failed to retrieve services")
		return
	}
	utils.Success(c, 200, "Services retrieved", list)
}

// GetService handles GET /v1/admin/services/:id
func (h *CatalogAdminHandler) GetService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	svc, err := h.adminService.GetService(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve service")
		return
	}
	utils.Success(c, 200, "Service retrieved", svc)
}

// CreateService handles POST /v1/admin/services
func (h *CatalogAdminHandler) CreateService(c *gin.Context) {
	var req service.ServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.adminService.CreateService(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create service")
		return
	}
	utils.Success(c, 201, "Service created successfully", svc)
}

// UpdateService handles PUT /v1/admin/services/:id
func (h *CatalogAdminHandler) UpdateService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.adminService.UpdateService(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update service")
		return
	}
	utils.Success(c, 200, "Service updated successfully", svc)
}

// UpdateServicePricing handles PUT /v1/admin/services/:id/pricing
func (h *CatalogAdminHandler) UpdateServicePricing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ServicePricingRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.adminService.UpdateServicePricing(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update service pricing")
		return
	}
	utils.Success(c, 200, "Service pricing updated successfully", svc)
}

// DeleteService handles DELETE /v1/admin/services/:id
func (h *CatalogAdminHandler) DeleteService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeleteService(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete service")
		return
	}
	utils.Success(c, 200, "Service deleted successfully", nil)
}
