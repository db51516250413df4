package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/domain"
	"taskboard/infrastructure/logger"
)

// AppError defines the interface for application errors
type AppError interface {
	error
	Code() string
	HTTPStatus() int
}

// HTTPError implements AppError interface for HTTP errors
type HTTPError struct {
	code       string
	message    string
	httpStatus int
}

// NewError creates a new HTTPError
func NewError(code string, message string, httpStatus int) *HTTPError {
	return &HTTPError{
		code:       code,
		message:    message,
		httpStatus: httpStatus,
	}
}

func (e *HTTPError) Error() string {
	return e.message
}

func (e *HTTPError) Code() string {
	return e.code
}

func (e *HTTPError) HTTPStatus() int {
	return e.httpStatus
}

// Common errors
var (
	ErrBadRequest      = &HTTPError{"bad_request", "Bad request", http.StatusBadRequest}
	ErrNotFound        = &HTTPError{"not_found", "Task not found", http.StatusNotFound}
	ErrUnauthenticated = &HTTPError{"unauthenticated", "Authentication required", http.StatusUnauthorized}
	ErrInternal        = &HTTPError{"internal_error", "Internal server error", http.StatusInternalServerError}
)

// BadRequest wraps a binding or validation failure
func BadRequest(message string) *HTTPError {
	return NewError("invalid_request", message, http.StatusBadRequest)
}

// statusFor maps an error chain to the HTTP error it is reported as.
// Persistence failures and anything unknown are reported without detail.
func statusFor(err error) AppError {
	var appErr AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrUnauthenticated):
		return ErrUnauthenticated
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return NewError("invalid_argument", err.Error(), http.StatusBadRequest)
	default:
		return ErrInternal
	}
}

// Success sends a successful JSON response with status 200
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error response based on the error type
func Error(c *gin.Context, err error) {
	httpErr := statusFor(err)

	fields := []zap.Field{
		zap.String("code", httpErr.Code()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if httpErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.Named("http").Error("Request failed", fields...)
	} else {
		logger.Named("http").Debug("Request rejected", fields...)
	}

	c.JSON(httpErr.HTTPStatus(), gin.H{
		"error":   httpErr.Code(),
		"message": httpErr.Error(),
	})
}

// Message sends a 200 response carrying only a message, as for deletions
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}
