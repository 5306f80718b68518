package apperr

import (
	"github.com/labstack/echo/v4"
)

// EchoError wraps err in an *echo.HTTPError with the status HTTPStatus picks.
// An *echo.HTTPError passes through untouched.
func EchoError(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	return echo.NewHTTPError(HTTPStatus(err), err.Error()).SetInternal(err)
}
