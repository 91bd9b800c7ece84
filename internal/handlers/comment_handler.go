package handlers

import (
	"net/http"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	social *services.SocialService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(social *services.SocialService) *CommentHandler {
	return &CommentHandler{social: social}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/issues/:id/comments", h.CreateComment)
	g.GET("/issues/:id/comments", h.GetCommentsByIssueID)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CreateComment comments on an issue or replies to a comment
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	comment, err := h.social.Comment(c.Request().Context(), caller(c), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, comment)
}

// GetCommentsByIssueID retrieves the discussion of an issue
func (h *CommentHandler) GetCommentsByIssueID(c echo.Context) error {
	comments, err := h.social.ListComments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"comments": comments})
}

// DeleteComment deletes a comment and its replies
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	commentID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	deleted, err := h.social.DeleteComment(c.Request().Context(), caller(c), commentID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"deleted": deleted})
}
