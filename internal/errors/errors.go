package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/staylens/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound        = "NOT_FOUND"
	ErrBadRequest      = "BAD_REQUEST"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
	ErrInvalidRange    = "INVALID_RANGE"
	ErrViewFailed      = "VIEW_ERROR"
	ErrTooManyRequests = "TOO_MANY_REQUESTS"
	ErrNotReady        = "NOT_READY"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// logFields builds the common request fields for an error log line.
func logFields(c *gin.Context, message string, details map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
		"path":       c.Request.URL.Path,
	}
	if details != nil {
		fields["details"] = details
	}
	return fields
}

func respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Resource not found", logFields(c, message, nil))
	}
	respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Bad request", logFields(c, message, details))
	}
	respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// InvalidRange returns a 400 response for a filter range whose bounds are
// out of order. The view keeps its previous render.
func InvalidRange(c *gin.Context, min, max float64) {
	details := map[string]interface{}{
		"min": min,
		"max": max,
	}
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Invalid filter range", logFields(c, "price_min must not exceed price_max", details))
	}
	respond(c, http.StatusBadRequest, ErrInvalidRange, "price_min must not exceed price_max", details)
}

// InternalServerError returns a 500 Internal Server Error response.
// The actual error details are not exposed to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		fields := logFields(c, message, nil)
		fields["method"] = c.Request.Method
		log.Error("Internal server error", err, fields)
	}
	respond(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ViewError returns a 500 response for a view whose computation failed.
// Other views are unaffected.
func ViewError(c *gin.Context, view string, err error) {
	details := map[string]interface{}{"view": view}
	if log := middleware.GetLogger(c); log != nil {
		log.Error("View computation failed", err, logFields(c, "view computation failed", details))
	}
	respond(c, http.StatusInternalServerError, ErrViewFailed, "Failed to compute view "+view, details)
}

// TooManyRequests returns a 429 response from the rate limiter.
func TooManyRequests(c *gin.Context) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Rate limit exceeded", logFields(c, "rate limit exceeded", nil))
	}
	respond(c, http.StatusTooManyRequests, ErrTooManyRequests, "Too many requests, slow down", nil)
}

// NotReady returns a 503 response while the service cannot serve views.
func NotReady(c *gin.Context, message string) {
	respond(c, http.StatusServiceUnavailable, ErrNotReady, message, nil)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{})
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}
	ValidationFailed(c, details)
}

// ValidationFailed returns a 400 validation response for checks done outside
// the validator, keyed by query parameter.
func ValidationFailed(c *gin.Context, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Validation error", map[string]interface{}{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"fields":     details,
		})
	}
	respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "numeric", "number":
		return "Must be a number"
	case "required_with":
		return "Required when " + err.Param() + " is set"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
