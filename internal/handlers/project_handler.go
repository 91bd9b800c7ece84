package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ProjectHandler serves proposals, construction projects and completion
type ProjectHandler struct {
	proposals  *services.ProposalService
	projects   *services.ProjectService
	completion *services.CompletionService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(proposals *services.ProposalService, projects *services.ProjectService, completion *services.CompletionService) *ProjectHandler {
	return &ProjectHandler{proposals: proposals, projects: projects, completion: completion}
}

// RegisterProjectRoutes registers proposal, project and completion routes
func (h *ProjectHandler) RegisterProjectRoutes(g *echo.Group) {
	g.POST("/issues/:id/proposals", h.SubmitProposal)
	g.GET("/issues/:id/proposals", h.ListProposals)
	g.POST("/issues/:id/project", h.CreateProject)
	g.GET("/issues/:id/project", h.GetIssueProject)
	g.GET("/projects/:id", h.GetProject)
	g.POST("/projects/:id/stages/:index", h.AdvanceStage)
	g.POST("/issues/:id/completion", h.ConfirmCompletion)
}

// SubmitProposal files a designer's proposal on a pending issue
func (h *ProjectHandler) SubmitProposal(c echo.Context) error {
	var req models.SubmitProposalRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	proposal, err := h.proposals.Submit(c.Request().Context(), caller(c), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, proposal)
}

// ListProposals returns the proposals filed on an issue
func (h *ProjectHandler) ListProposals(c echo.Context) error {
	proposals, err := h.proposals.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"proposals": proposals})
}

// CreateProject claims an issue for the calling contractor
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var req models.CreateProjectRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	project, err := h.projects.Create(c.Request().Context(), caller(c), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, project)
}

// GetIssueProject returns the project attached to an issue
func (h *ProjectHandler) GetIssueProject(c echo.Context) error {
	project, err := h.projects.GetByIssue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, project)
}

// GetProject returns a project by ID
func (h *ProjectHandler) GetProject(c echo.Context) error {
	project, err := h.projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, project)
}

// AdvanceStage completes the in-progress stage at :index
func (h *ProjectHandler) AdvanceStage(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return fail(c, apperrors.Validation("invalid stage index"))
	}
	var req models.AdvanceStageRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	project, err := h.projects.AdvanceStage(c.Request().Context(), caller(c), c.Param("id"), index, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, project)
}

// ConfirmCompletion accepts finished work on an issue
func (h *ProjectHandler) ConfirmCompletion(c echo.Context) error {
	var req models.ConfirmCompletionRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	completion, err := h.completion.Confirm(c.Request().Context(), caller(c), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, completion)
}
