package handlers

import (
	"net/http"

	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles reactions on issues and comments
type LikeHandler struct {
	social *services.SocialService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(social *services.SocialService) *LikeHandler {
	return &LikeHandler{social: social}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/issues/:id/likes", h.LikeIssue)
	g.DELETE("/issues/:id/likes", h.UnlikeIssue)
	g.POST("/comments/:id/likes", h.LikeComment)
	g.DELETE("/comments/:id/likes", h.UnlikeComment)
}

// LikeIssue adds the caller's reaction to an issue
func (h *LikeHandler) LikeIssue(c echo.Context) error {
	if err := h.social.LikeIssue(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": true})
}

// UnlikeIssue removes the caller's reaction
func (h *LikeHandler) UnlikeIssue(c echo.Context) error {
	if err := h.social.UnlikeIssue(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": false})
}

// LikeComment reacts to a comment
func (h *LikeHandler) LikeComment(c echo.Context) error {
	commentID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	count, err := h.social.LikeComment(c.Request().Context(), caller(c), commentID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": true, "likes_count": count})
}

// UnlikeComment withdraws a comment reaction
func (h *LikeHandler) UnlikeComment(c echo.Context) error {
	commentID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	count, err := h.social.UnlikeComment(c.Request().Context(), caller(c), commentID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": false, "likes_count": count})
}
