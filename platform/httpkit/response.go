// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"leadhunt_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Created sends a 201 Created response with the given payload.
func Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError maps domain errors to HTTP responses.
// If the error is a typed *apperr.Error, it uses the error's Kind to determine
// the HTTP status code. Otherwise, it defaults to 400 Bad Request.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:     domainErr.Message,
			Retryable: domainErr.Retryable(),
			Details:   domainErr.Details,
		})
		return true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return true
}

// TenantID extracts the authenticated tenant ID from the gin context.
// Returns uuid.Nil and false when the request is unauthenticated.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ContextTenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	return id, true
}

// MustTenantID extracts the tenant ID or aborts with 401.
func MustTenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := TenantID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return uuid.Nil, false
	}
	return id, true
}
