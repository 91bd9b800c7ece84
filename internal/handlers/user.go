package handlers

import (
	"net/http"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	social *services.SocialService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(social *services.SocialService) *UserHandler {
	return &UserHandler{social: social}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)    // Get own profile
	g.PUT("/profile", h.UpdateProfile) // Update own profile
	g.GET("/users/:id", h.GetUser)     // Get other user's profile by ID
}

// GetUser returns another user's public profile
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	user, err := h.social.Profile(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, user.ToCompact())
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	cl := caller(c)
	user, err := h.social.Profile(c.Request().Context(), cl.ID())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": user, "capabilities": cl.Capabilities})
}

// UpdateProfile edits the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	user, err := h.social.UpdateProfile(c.Request().Context(), caller(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, user)
}
