package utils

import (
	"errors"
	"sort"
	"strings"
)

// Common application errors used across services.
var (
	ErrInvalidToken          = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials    = errors.New("INVALID_CREDENTIALS")
	ErrAccountInactive       = errors.New("ACCOUNT_INACTIVE")
	ErrSubmissionNotFound    = errors.New("SUBMISSION_NOT_FOUND")
	ErrInvalidStatus         = errors.New("INVALID_STATUS")
	ErrServiceNotFound       = errors.New("SERVICE_NOT_FOUND")
	ErrVariationNotFound     = errors.New("VARIATION_NOT_FOUND")
	ErrCategoryNotFound      = errors.New("CATEGORY_NOT_FOUND")
	ErrPricingTypeNotFound   = errors.New("PRICING_TYPE_NOT_FOUND")
	ErrPricingNotFound       = errors.New("PRICING_NOT_FOUND")
	ErrMaterialNotFound      = errors.New("MATERIAL_NOT_FOUND")
	ErrDuplicateName         = errors.New("DUPLICATE_NAME")
	ErrSweepAlreadyRunning   = errors.New("SWEEP_ALREADY_RUNNING")
	ErrContentUnavailable    = errors.New("CONTENT_UNAVAILABLE")
	ErrSubmissionNotEligible = errors.New("SUBMISSION_NOT_ELIGIBLE")
)

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a problem for field. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// Merge copies every field of m into e.
func (e *ValidationError) Merge(m map[string]string) {
	for k, v := range m {
		e.Add(k, v)
	}
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e when it holds errors and nil otherwise, so callers can
// `return v.OrNil()` without returning a typed nil.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
