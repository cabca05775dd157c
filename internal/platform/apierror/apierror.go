// Package apierror converts service errors into echo HTTP errors.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octvision/octvision/internal/platform/classifier"
	"github.com/octvision/octvision/internal/platform/db"
)

// StatusCoder is implemented by domain errors that carry their own status,
// such as upload validation failures.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// From maps err to an *echo.HTTPError. notFound is the message used for
// db.ErrNotFound so callers can name the missing resource.
func From(err error, notFound string) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return echo.NewHTTPError(sc.HTTPStatus(), sc.Error())
	}

	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, db.ErrConstraintViolation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, classifier.ErrCanceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request canceled")
	case errors.Is(err, classifier.ErrMalformedResponse):
		return echo.NewHTTPError(http.StatusBadGateway, "classifier returned an invalid response")
	case errors.Is(err, classifier.ErrClassifierUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "classifier unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
