package middleware

import (
	"context"
	"errors"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserLookup resolves the account behind an authenticated request.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RequireAdmin must run after RequireAuth. Callers whose account is gone are
// treated as unauthenticated; non-admins get 403.
func RequireAdmin(users UserLookup, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := common.UserIDFromEcho(c)
			if err != nil {
				return err
			}

			user, err := users.GetByID(c.Request().Context(), userID)
			if errors.Is(err, repositories.ErrNotFound) {
				return common.Unauthorized("user no longer exists")
			}
			if err != nil {
				return common.Upstream("load user", err)
			}
			if !user.IsAdmin() {
				logger.Info("admin access denied",
					zap.String("user_id", userID.String()),
					zap.String("path", c.Path()))
				return common.Forbidden("admin access required")
			}

			c.Set(string(common.RoleKey), user.Role)
			return next(c)
		}
	}
}
