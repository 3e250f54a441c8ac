package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/repository"
	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// SubmissionHandler handles lead intake and the admin submissions dashboard.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// CreateSubmission handles POST /v1/submissions
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req service.CreateSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	// The schedule is server-owned on the public route.
	req.EmailScheduledFor = nil

	sub, err := h.submissionService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create submission")
		return
	}
	utils.Success(c, http.StatusCreated, "Submission received", sub)
}

// ListSubmissions handles GET /v1/admin/submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	filter := &repository.SubmissionFilter{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if status := c.Query("status"); status != "" {
		st := models.SubmissionStatus(status)
		filter.Status = &st
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}

	result, err := h.submissionService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to retrieve submissions")
		return
	}
	submissions := result.Submissions
	if submissions == nil {
		submissions = []models.Submission{}
	}
	utils.SuccessWithPagination(c, 200, "Submissions retrieved", submissions, result.Page, result.Limit, result.TotalItems)
}

// GetStats handles GET /v1/admin/submissions/stats
func (h *SubmissionHandler) GetStats(c *gin.Context) {
	stats, err := h.submissionService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve stats")
		return
	}
	utils.Success(c, 200, "Stats retrieved", stats)
}

// GetSubmission handles GET /v1/admin/submissions/:id
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sub, err := h.submissionService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve submission")
		return
	}
	utils.Success(c, 200, "Submission retrieved", sub)
}

// UpdateStatus handles PATCH /v1/admin/submissions/:id/status
func (h *SubmissionHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.submissionService.UpdateStatus(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update submission status")
		return
	}
	utils.Success(c, 200, "Submission status updated", sub)
}

// RescheduleEmail handles POST /v1/admin/submissions/:id/reschedule-email
func (h *SubmissionHandler) RescheduleEmail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.RescheduleRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	sub, err := h.submissionService.RescheduleEmail(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to reschedule estimate email")
		return
	}
	utils.Success(c, 200, "Estimate email rescheduled", sub)
}

// DeleteSubmission handles DELETE /v1/admin/submissions/:id
func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.submissionService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete submission")
		return
	}
	utils.Success(c, 200, "Submission deleted", nil)
}
