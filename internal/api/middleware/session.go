package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// UserKey is the echo context key holding the logged-in *domain.User.
const UserKey = "user"

// SessionChecker reports the logged-in user.
type SessionChecker interface {
	Current(ctx context.Context) (*domain.User, error)
}

// RequireSession rejects requests while no user is logged in.
func RequireSession(sessions SessionChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := sessions.Current(c.Request().Context())
			if errors.Is(err, domain.ErrNoSession) {
				return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
			}
			if err != nil {
				return err
			}
			c.Set(UserKey, u)
			return next(c)
		}
	}
}
