package middleware

import (
	"net/http"

	"stitchmart/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditMutations writes one log entry for every state-changing request that
// reaches it, recording who made it and how it ended.
func AuditMutations(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return next(c)
			}

			err := next(c)

			fields := []zap.Field{
				zap.String("method", method),
				zap.String("route", c.Path()),
				zap.String("uri", c.Request().RequestURI),
			}
			if id, uerr := common.UserIDFromEcho(c); uerr == nil {
				fields = append(fields, zap.String("user_id", id.String()))
			}
			for _, name := range c.ParamNames() {
				fields = append(fields, zap.String("param_"+name, c.Param(name)))
			}
			if err != nil {
				fields = append(fields, zap.String("outcome", string(common.KindOf(err))), zap.Error(err))
			} else {
				fields = append(fields, zap.String("outcome", "ok"), zap.Int("status", c.Response().Status))
			}
			logger.Info("audit", fields...)
			return err
		}
	}
}
