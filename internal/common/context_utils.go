package common

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// ParseID validates a path or form identifier and returns a validation error naming the field.
func ParseID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, Validation(fieldName+" is required", map[string]string{fieldName: "required"})
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, Validation("invalid "+fieldName, map[string]string{fieldName: "must be a valid UUID"})
	}
	return id, nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// WithUserID returns a context carrying the authenticated user's ID
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// UserIDFromEcho reads the authenticated user set by the auth middleware.
func UserIDFromEcho(c echo.Context) (uuid.UUID, error) {
	if id, ok := c.Get(string(UserIDKey)).(uuid.UUID); ok {
		return id, nil
	}
	if id, ok := GetUserIDFromContext(c.Request().Context()); ok {
		return id, nil
	}
	return uuid.Nil, Unauthorized("authentication required")
}
