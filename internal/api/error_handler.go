package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/api/handler"
	"github.com/pennywise/finance-client/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders the response envelope with success=false.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.Envelope) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.Fail(fmt.Sprintf("%v", he.Message), nil)
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		msg := ve.Message
		if msg == "" {
			msg = domain.ErrValidation.Error()
		}
		return http.StatusUnprocessableEntity, handler.Fail(msg, ve.Fields)
	}

	var pe *domain.PartialRefreshError
	if errors.As(err, &pe) {
		fields := make(map[string][]string, len(pe.Failures))
		for _, f := range pe.Failures {
			fields[f.Subscriber] = append(fields[f.Subscriber], f.Err.Error())
		}
		return http.StatusBadGateway, handler.Fail(domain.ErrPartialRefresh.Error(), fields)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, handler.Fail("profile not found", nil)
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, handler.Fail("transaction not found", nil)
	case errors.Is(err, domain.ErrUnknownReport):
		return http.StatusNotFound, handler.Fail("unknown report", nil)
	case errors.Is(err, domain.ErrLastProfile):
		return http.StatusConflict, handler.Fail("cannot delete your only profile", nil)
	case errors.Is(err, domain.ErrRefreshInProgress):
		return http.StatusConflict, handler.Fail("refresh already in progress", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, handler.Fail("unauthorized", nil)
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized, handler.Fail("not logged in", nil)
	case errors.Is(err, domain.ErrCoordinatorClosed):
		return http.StatusServiceUnavailable, handler.Fail("shutting down", nil)
	case errors.Is(err, domain.ErrNetworkFailure):
		log.Warn().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("backend unavailable")
		return http.StatusBadGateway, handler.Fail("backend unavailable", nil)
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.Fail("internal server error", nil)
}
