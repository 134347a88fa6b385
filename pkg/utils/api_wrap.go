package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeGateway       = "GATEWAY_ERROR"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeSignature     = "INVALID_SIGNATURE"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeInternal      = "INTERNAL_ERROR"
)

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, status int, code, details string) {
	c.JSON(status, APIResponse{
		Success: false,
		Code:    status,
		Error:   code,
		Details: details,
		TraceID: c.GetString("trace_id"),
	})
}

// ErrorStatus maps an error from the service layer onto an HTTP status and
// a machine readable code.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest, CodeConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrSignature):
		return http.StatusUnauthorized, CodeSignature
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrGateway):
		return http.StatusInternalServerError, CodeGateway
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError, CodeConfiguration
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func HandleServiceError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)

	details := err.Error()
	switch code {
	case CodeInternal:
		details = "Internal server error"
	case CodeConfiguration:
		details = "Payment service is not configured"
	case CodeGateway:
		// keep the gateway message, it is safe and useful to the payment form
	default:
		details = trimSentinel(details)
	}

	_ = c.Error(err)
	RespondError(c, status, code, details)
}

// trimSentinel drops the "validation error: " style prefix so the client
// only sees the human readable part.
func trimSentinel(msg string) string {
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
