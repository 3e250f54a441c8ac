package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response defines the standard API response envelope.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo provides details for error responses.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Meta contains request-scoped metadata.
type Meta struct {
	RequestID  string      `json:"requestId"`
	Timestamp  string      `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// DefaultPageLimit is used when a list request carries no usable limit.
const DefaultPageLimit = 20

// Success writes a success response with the standard envelope.
func Success(c *gin.Context, code int, message string, data interface{}) {
	write(c, Response{Success: true, Code: code, Message: message, Data: data}, nil)
}

// SuccessWithPagination writes a success response with pagination metadata.
func SuccessWithPagination(c *gin.Context, code int, message string, data interface{}, page, limit, totalItems int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	write(c, Response{Success: true, Code: code, Message: message, Data: data}, &Pagination{
		Page:       page,
		Limit:      limit,
		TotalItems: totalItems,
		TotalPages: (totalItems + limit - 1) / limit,
	})
}

// Error writes an error response with provided API error code and message.
func Error(c *gin.Context, code int, errCode, message string) {
	write(c, Response{
		Code:    code,
		Message: message,
		Error:   &ErrorInfo{Code: errCode, Message: message},
	}, nil)
}

// ValidationFailed writes a 422 response listing the offending fields.
func ValidationFailed(c *gin.Context, ve *ValidationError) {
	write(c, Response{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Error: &ErrorInfo{
			Code:    "VALIDATION_ERROR",
			Message: "Validation failed",
			Fields:  ve.Fields,
		},
	}, nil)
}

func write(c *gin.Context, resp Response, page *Pagination) {
	resp.Meta = Meta{
		RequestID:  requestID(c),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Pagination: page,
	}
	c.JSON(resp.Code, resp)
}

func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}
