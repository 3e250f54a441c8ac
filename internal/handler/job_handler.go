package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/middleware"
	"github.com/GTDGit/surgeryquote_api/internal/service"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// JobHandler exposes manual triggers of background jobs.
type JobHandler struct {
	dispatchService *service.DispatchService
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(dispatchService *service.DispatchService) *JobHandler {
	return &JobHandler{dispatchService: dispatchService}
}

// RunEstimateEmails handles POST /v1/admin/jobs/estimate-emails
func (h *JobHandler) RunEstimateEmails(c *gin.Context) {
	log.Info().Int("admin_id", middleware.AdminUserID(c)).Msg("Manual estimate email sweep requested")

	report, err := h.dispatchService.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err, "Estimate email sweep failed")
		return
	}
	utils.Success(c, 200, "Estimate email sweep finished", report)
}
