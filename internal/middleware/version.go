package middleware

import (
	"github.com/labstack/echo/v4"
)

const VersionHeader = "X-API-Version"

// APIVersion stamps the API version on every response of a route group.
func APIVersion(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(VersionHeader, version)
			return next(c)
		}
	}
}
