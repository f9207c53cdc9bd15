package common

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler renders AppErrors and echo errors in the ErrorResponse envelope.
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorBody(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}

// HTTPStatus returns the status code the error handler will answer err with.
func HTTPStatus(err error) int {
	status, _ := errorBody(err)
	return status
}

func errorBody(err error) (int, *ErrorResponse) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := StatusCode(appErr.Kind)
		msg := appErr.Message
		if appErr.Kind == KindUpstream {
			msg = "internal server error"
		}
		return status, CreateErrorResponse(kindCode[appErr.Kind], msg, appErr.Fields)
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok {
			msg = s
		}
		return httpErr.Code, CreateErrorResponse(httpCode(httpErr.Code), msg, nil)
	}

	return http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", "internal server error", nil)
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "CLIENT_ERROR"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	}
	if status >= http.StatusInternalServerError {
		return "SERVER_ERROR"
	}
	return "CLIENT_ERROR"
}
