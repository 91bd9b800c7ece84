package handlers

import (
	"net/http"

	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	social *services.SocialService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(social *services.SocialService) *FollowHandler {
	return &FollowHandler{social: social}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	targetID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.social.Follow(c.Request().Context(), caller(c), targetID); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"following": true})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	targetID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.social.Unfollow(c.Request().Context(), caller(c), targetID); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"following": false})
}

// GetFollowers lists a user's followers
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	userID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	users, err := h.social.Followers(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"users": users})
}

// GetFollowing lists the users a user follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	userID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	users, err := h.social.Following(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"users": users})
}
