package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// IssueHandler serves issue reporting, the issue feed and the case library
type IssueHandler struct {
	issues         *services.IssueService
	userRepository repositories.UserRepository
	likeRepository repositories.LikeRepository
}

// NewIssueHandler creates a new IssueHandler
func NewIssueHandler(issues *services.IssueService, userRepo repositories.UserRepository, likeRepo repositories.LikeRepository) *IssueHandler {
	return &IssueHandler{issues: issues, userRepository: userRepo, likeRepository: likeRepo}
}

// RegisterIssueRoutes registers issue routes
func (h *IssueHandler) RegisterIssueRoutes(g *echo.Group) {
	g.POST("/issues", h.ReportIssue)
	g.GET("/issues", h.ListIssues)
	g.GET("/issues/:id", h.GetIssue)
	g.POST("/issues/:id/verify", h.VerifyIssue)
	g.DELETE("/issues/:id", h.DeleteIssue)
	g.GET("/cases", h.ListCases)
}

// EnrichedIssue is an issue with its reporter and the caller's reaction
type EnrichedIssue struct {
	models.Issue
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// ReportIssue creates a pending issue
func (h *IssueHandler) ReportIssue(c echo.Context) error {
	var req models.ReportIssueRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	issue, err := h.issues.Report(c.Request().Context(), caller(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, issue)
}

// ListIssues returns the issue feed, optionally filtered by status or reporter
func (h *IssueHandler) ListIssues(c echo.Context) error {
	filter := models.IssueFilter{Status: models.IssueStatus(c.QueryParam("status"))}
	if owner := c.QueryParam("owner_id"); owner != "" {
		id, err := strconv.ParseUint(owner, 10, 32)
		if err != nil {
			return fail(c, apperrors.Validation("invalid owner_id"))
		}
		filter.OwnerID = uint(id)
	}
	page, limit := pageParams(c, 10)
	issues, err := h.issues.List(c.Request().Context(), filter, page, limit)
	if err != nil {
		return fail(c, err)
	}
	return h.respondFeed(c, issues, page, limit)
}

// ListCases returns completed issues published to the case library
func (h *IssueHandler) ListCases(c echo.Context) error {
	page, limit := pageParams(c, 10)
	issues, err := h.issues.Cases(c.Request().Context(), page, limit)
	if err != nil {
		return fail(c, err)
	}
	return h.respondFeed(c, issues, page, limit)
}

func (h *IssueHandler) respondFeed(c echo.Context, issues []models.Issue, page, limit int) error {
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    echo.Map{"issues": h.enrich(c, issues)},
		Meta: echo.Map{
			"currentPage":     page,
			"itemsPerPage":    limit,
			"hasNextPage":     len(issues) == limit,
			"hasPreviousPage": page > 1,
		},
	})
}

// enrich attaches authors and the caller's like flag. Lookups that fail
// leave the zero value; the feed is still served.
func (h *IssueHandler) enrich(c echo.Context, issues []models.Issue) []EnrichedIssue {
	ctx := c.Request().Context()
	viewer := caller(c)
	authors := make(map[uint]models.UserCompact)
	enriched := make([]EnrichedIssue, len(issues))
	for i, issue := range issues {
		enriched[i] = EnrichedIssue{Issue: issue}
		author, cached := authors[issue.OwnerID]
		if !cached {
			if user, err := h.userRepository.GetUserByID(ctx, issue.OwnerID); err == nil {
				author = user.ToCompact()
				authors[issue.OwnerID] = author
			}
		}
		enriched[i].Author = author
		if viewer != nil {
			liked, err := h.likeRepository.HasUserLikedIssue(ctx, issue.ID.Hex(), viewer.ID())
			enriched[i].IsLiked = err == nil && liked
		}
	}
	return enriched
}

// GetIssue returns one issue with media URLs and its project
func (h *IssueHandler) GetIssue(c echo.Context) error {
	detail, err := h.issues.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, detail)
}

// VerifyIssue records professional confirmation of an issue
func (h *IssueHandler) VerifyIssue(c echo.Context) error {
	issue, err := h.issues.Verify(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, issue)
}

// DeleteIssue removes an unclaimed issue
func (h *IssueHandler) DeleteIssue(c echo.Context) error {
	if err := h.issues.Delete(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
