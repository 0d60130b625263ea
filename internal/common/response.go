package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// APIResponse standard API response structure
type APIResponse struct {
	Data  interface{} `json:"data"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo error details
type ErrorInfo struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// SuccessResponse returns a successful JSON response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Data: data})
}

// CreatedResponse returns a 201 Created JSON response
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Data: data})
}

// ErrorResponse returns an error JSON response.
// err is only logged for 5xx statuses and never written to the body.
func ErrorResponse(c *gin.Context, status int, message string, err error) {
	errInfo := &ErrorInfo{
		Code:    getErrorCode(status),
		Message: message,
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		errInfo.Details = vErr.Fields
	}

	if status >= http.StatusInternalServerError && err != nil {
		requestID, _ := c.Get("request_id")
		logger.GetLogger().Error().
			Err(err).
			Interface("request_id", requestID).
			Str("path", c.Request.URL.Path).
			Msg(message)
	}

	c.JSON(status, gin.H{
		"error": errInfo,
	})
}

// HandleServiceError translates a service error into the matching HTTP status.
// Anything unclassified becomes a 500 carrying the fallback message.
func HandleServiceError(c *gin.Context, err error, fallback string) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		ErrorResponse(c, http.StatusBadRequest, vErr.Message, err)
	case errors.Is(err, ErrInvalidInput):
		ErrorResponse(c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, "not found", err)
	case errors.Is(err, ErrUnauthorized):
		ErrorResponse(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, ErrConflict):
		ErrorResponse(c, http.StatusConflict, "request conflicted with a concurrent update, retry", err)
	default:
		ErrorResponse(c, http.StatusInternalServerError, fallback, err)
	}
}

// BindError reports a gin binding failure, listing the fields that failed validation
func BindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		ErrorResponse(c, http.StatusBadRequest, "invalid request body", NewValidationError("invalid request body", fields...))
		return
	}
	ErrorResponse(c, http.StatusBadRequest, "invalid request body", nil)
}

// getErrorCode generates error code from HTTP status
func getErrorCode(status int) string {
	switch status {
	case 400:
		return "BAD_REQUEST"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 429:
		return "RATE_LIMITED"
	case 500:
		return "INTERNAL_SERVER_ERROR"
	case 504:
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}
