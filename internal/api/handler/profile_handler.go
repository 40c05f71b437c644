package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

// ProfileHandler exposes the profile registry.
type ProfileHandler struct {
	service ports.ProfileService
}

func NewProfileHandler(service ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// --- Request / Response types ---

type profileRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	IsDefault   bool   `json:"is_default"`
}

func (r profileRequest) input() domain.ProfileInput {
	return domain.ProfileInput{
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		IsDefault:   r.IsDefault,
	}
}

type switchProfileRequest struct {
	ProfileID domain.ProfileID `json:"profile_id" validate:"required"`
}

type profileListResponse struct {
	Profiles         []domain.Profile       `json:"profiles"`
	Options          []domain.ProfileOption `json:"options"`
	CurrentProfileID domain.ProfileID       `json:"current_profile_id,omitempty"`
}

type profileResponse struct {
	Profile *domain.Profile `json:"profile"`
}

// List handles GET /profiles. ?reload=true refetches from the backend first.
//
// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Param        reload  query     bool  false  "Refetch from the backend first"
// @Success      200     {object}  Envelope{data=profileListResponse}
// @Failure      401     {object}  Envelope
// @Failure      502     {object}  Envelope
// @Router       /profiles [get]
func (h *ProfileHandler) List(c echo.Context) error {
	if c.QueryParam("reload") == "true" {
		if _, err := h.service.FetchProfiles(c.Request().Context()); err != nil {
			return err
		}
	}
	resp := profileListResponse{
		Profiles: h.service.Profiles(),
		Options:  h.service.ProfileOptions(),
	}
	if p, ok := h.service.CurrentProfile(); ok {
		resp.CurrentProfileID = p.ID
	}
	return respond(c, http.StatusOK, resp)
}

// Current handles GET /profiles/current. Data carries a null profile while
// nothing is selected.
//
// @Summary      Get the current profile
// @Tags         profiles
// @Produce      json
// @Success      200  {object}  Envelope{data=profileResponse}
// @Failure      401  {object}  Envelope
// @Router       /profiles/current [get]
func (h *ProfileHandler) Current(c echo.Context) error {
	p, ok := h.service.CurrentProfile()
	if !ok {
		return respond(c, http.StatusOK, profileResponse{})
	}
	return respond(c, http.StatusOK, profileResponse{Profile: &p})
}

// Create handles POST /profiles.
//
// @Summary      Create a profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        body  body      profileRequest  true  "Profile"
// @Success      201   {object}  Envelope{data=profileResponse}
// @Failure      400   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Failure      502   {object}  Envelope
// @Router       /profiles [post]
func (h *ProfileHandler) Create(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.service.CreateProfile(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, profileResponse{Profile: &p})
}

// Get handles GET /profiles/:id. The profile is re-read from the backend and
// the local copy replaced.
//
// @Summary      Reload a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      string  true  "Profile ID"
// @Success      200  {object}  Envelope{data=profileResponse}
// @Failure      404  {object}  Envelope
// @Failure      502  {object}  Envelope
// @Router       /profiles/{id} [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	p, err := h.service.ReloadProfile(c.Request().Context(), domain.ProfileID(c.Param("id")))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, profileResponse{Profile: &p})
}

// Update handles PUT /profiles/:id.
//
// @Summary      Update a profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id    path      string          true  "Profile ID"
// @Param        body  body      profileRequest  true  "Profile"
// @Success      200   {object}  Envelope{data=profileResponse}
// @Failure      404   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Router       /profiles/{id} [put]
func (h *ProfileHandler) Update(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.service.UpdateProfile(c.Request().Context(), domain.ProfileID(c.Param("id")), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, profileResponse{Profile: &p})
}

// Delete handles DELETE /profiles/:id.
//
// @Summary      Delete a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      string  true  "Profile ID"
// @Success      200  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Failure      409  {object}  Envelope
// @Router       /profiles/{id} [delete]
func (h *ProfileHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteProfile(c.Request().Context(), domain.ProfileID(c.Param("id"))); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"deleted": true})
}

// Switch handles POST /profiles/switch.
//
// @Summary      Switch the current profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        body  body      switchProfileRequest  true  "Target profile"
// @Success      200   {object}  Envelope{data=profileResponse}
// @Failure      404   {object}  Envelope
// @Failure      502   {object}  Envelope
// @Router       /profiles/switch [post]
func (h *ProfileHandler) Switch(c echo.Context) error {
	var req switchProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.service.SwitchProfile(c.Request().Context(), req.ProfileID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, profileResponse{Profile: &p})
}
