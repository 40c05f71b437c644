package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/ports"
)

// RefreshHandler triggers manual sweeps of the dependent stores.
type RefreshHandler struct {
	service ports.RefreshService
}

func NewRefreshHandler(service ports.RefreshService) *RefreshHandler {
	return &RefreshHandler{service: service}
}

// Refresh handles POST /refresh.
//
// @Summary      Reload every profile-scoped store
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  Envelope
// @Failure      409  {object}  Envelope
// @Failure      502  {object}  Envelope
// @Router       /refresh [post]
func (h *RefreshHandler) Refresh(c echo.Context) error {
	if err := h.service.Refresh(c.Request().Context()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"refreshed": true})
}

// Status handles GET /refresh.
//
// @Summary      Whether a refresh is running
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  Envelope
// @Router       /refresh [get]
func (h *RefreshHandler) Status(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]bool{"refreshing": h.service.IsRefreshing()})
}
