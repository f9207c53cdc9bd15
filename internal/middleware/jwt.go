package middleware

import (
	"errors"

	"stitchmart/internal/auth"
	"stitchmart/internal/common"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// RequireAuth rejects requests without a bearer token the verifier accepts and
// stores the caller's user id on both the echo and the request context.
func RequireAuth(verifier auth.Verifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: string(common.UserIDKey),
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return verifier.Verify(c.Request().Context(), token)
		},
		SuccessHandler: func(c echo.Context) {
			if id, ok := c.Get(string(common.UserIDKey)).(uuid.UUID); ok {
				c.SetRequest(c.Request().WithContext(common.WithUserID(c.Request().Context(), id)))
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				return common.Unauthorized("invalid or expired token")
			}
			return common.Unauthorized("missing bearer token")
		},
	})
}
