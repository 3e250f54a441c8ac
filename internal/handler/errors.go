package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/utils"
	"github.com/GTDGit/surgeryquote_api/pkg/mailer"
)

// notFoundCodes maps not-found sentinels to their API error message.
var notFoundCodes = map[error]string{
	utils.ErrSubmissionNotFound:  "Submission not found",
	utils.ErrServiceNotFound:     "Service not found",
	utils.ErrVariationNotFound:   "Variation not found",
	utils.ErrCategoryNotFound:    "Category not found",
	utils.ErrPricingTypeNotFound: "Pricing type not found",
	utils.ErrPricingNotFound:     "Pricing not found",
	utils.ErrMaterialNotFound:    "Material not found",
}

// respondError writes the error response matching err. Unknown errors are
// logged and answered with a generic 500 carrying fallback.
func respondError(c *gin.Context, err error, fallback string) {
	if ve, ok := utils.AsValidationError(err); ok {
		utils.ValidationFailed(c, ve)
		return
	}
	for sentinel, msg := range notFoundCodes {
		if errors.Is(err, sentinel) {
			utils.Error(c, http.StatusNotFound, sentinel.Error(), msg)
			return
		}
	}

	switch {
	case errors.Is(err, utils.ErrInvalidCredentials):
		utils.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, utils.ErrAccountInactive):
		utils.Error(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive")
	case errors.Is(err, utils.ErrDuplicateName):
		utils.Error(c, http.StatusConflict, "DUPLICATE_NAME", "Name is already taken")
	case errors.Is(err, utils.ErrSubmissionNotEligible):
		utils.Error(c, http.StatusConflict, "SUBMISSION_NOT_ELIGIBLE", "Estimate email was already sent or has no recipient")
	case errors.Is(err, utils.ErrSweepAlreadyRunning):
		utils.Error(c, http.StatusConflict, "SWEEP_ALREADY_RUNNING", "An estimate email sweep is already running")
	case errors.As(err, &mailer.ErrDisabled{}):
		utils.Error(c, http.StatusServiceUnavailable, "MAIL_DISABLED", "Mail delivery is disabled")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

// bindJSON decodes the request body into req, answering 400 on malformed input.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	return true
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		utils.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}
