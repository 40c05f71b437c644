package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

// SessionHandler handles login and logout.
type SessionHandler struct {
	service ports.SessionService
}

func NewSessionHandler(service ports.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

// Login handles POST /auth/login.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  Envelope{data=domain.User}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Router       /auth/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, err := h.service.Login(c.Request().Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userResponse{User: u})
}

// Logout handles POST /auth/logout. It always succeeds.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  Envelope
// @Router       /auth/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	h.service.Logout(c.Request().Context())
	return respond(c, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me handles GET /auth/me.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  Envelope{data=domain.User}
// @Failure      401  {object}  Envelope
// @Router       /auth/me [get]
func (h *SessionHandler) Me(c echo.Context) error {
	u, err := h.service.Current(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userResponse{User: u})
}
