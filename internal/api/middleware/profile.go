package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// ProfileIDKey is the echo context key holding the current domain.ProfileID.
const ProfileIDKey = "profile_id"

// CurrentProfile reports the selected profile.
type CurrentProfile interface {
	CurrentProfile() (domain.Profile, bool)
}

// RequireProfile rejects profile-scoped reads while no profile is selected.
func RequireProfile(profiles CurrentProfile) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := profiles.CurrentProfile()
			if !ok {
				return echo.NewHTTPError(http.StatusConflict, "no profile selected")
			}
			c.Set(ProfileIDKey, p.ID)
			c.Response().Header().Set("X-Profile-ID", p.ID.String())
			return next(c)
		}
	}
}
