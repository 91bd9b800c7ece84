package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CertificationHandler serves role applications and the admin surface
type CertificationHandler struct {
	guard         *services.Guard
	certification *services.CertificationService
	stats         *services.StatsEngine
}

// NewCertificationHandler creates a new CertificationHandler
func NewCertificationHandler(guard *services.Guard, certification *services.CertificationService, stats *services.StatsEngine) *CertificationHandler {
	return &CertificationHandler{guard: guard, certification: certification, stats: stats}
}

// RegisterCertificationRoutes registers certification and admin routes
func (h *CertificationHandler) RegisterCertificationRoutes(g *echo.Group) {
	g.POST("/certification", h.Apply)
	g.GET("/certification", h.Status)

	admin := g.Group("/admin")
	admin.POST("/certifications/:userId/review", h.Review)
	admin.DELETE("/certifications/:userId", h.Revoke)
	admin.POST("/capabilities/:userId/:capability", h.GrantCapability)
	admin.DELETE("/capabilities/:userId/:capability", h.RevokeCapability)
	admin.POST("/stats/reconcile", h.ReconcileStats)
}

// Apply files the caller's role application
func (h *CertificationHandler) Apply(c echo.Context) error {
	var req models.ApplyCertificationRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	app, err := h.certification.Apply(c.Request().Context(), caller(c), req.Type, req.Info)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, app)
}

// Status returns the caller's current application, null when none was filed
func (h *CertificationHandler) Status(c echo.Context) error {
	app, err := h.certification.Status(c.Request().Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"certification": app})
}

// Review approves or rejects a pending application
func (h *CertificationHandler) Review(c echo.Context) error {
	userID, err := uintParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	var req models.ReviewCertificationRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := h.certification.Review(c.Request().Context(), caller(c), userID, req.Decision, req.RejectReason); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user_id": userID, "decision": req.Decision})
}

// Revoke returns a certified user to resident
func (h *CertificationHandler) Revoke(c echo.Context) error {
	userID, err := uintParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if err := h.certification.Revoke(c.Request().Context(), caller(c), userID); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user_id": userID, "role": models.RoleResident})
}

// GrantCapability gives a user a capability such as admin
func (h *CertificationHandler) GrantCapability(c echo.Context) error {
	userID, err := uintParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if err := h.guard.Grant(c.Request().Context(), caller(c), userID, c.Param("capability")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user_id": userID, "capability": c.Param("capability"), "granted": true})
}

// RevokeCapability removes a capability
func (h *CertificationHandler) RevokeCapability(c echo.Context) error {
	userID, err := uintParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if err := h.guard.Revoke(c.Request().Context(), caller(c), userID, c.Param("capability")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user_id": userID, "capability": c.Param("capability"), "granted": false})
}

// ReconcileStats recounts derived counters, for one user when user_id is given
func (h *CertificationHandler) ReconcileStats(c echo.Context) error {
	var userID uint
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fail(c, apperrors.Validation("invalid user_id"))
		}
		userID = uint(id)
	}
	report, err := h.stats.Reconcile(c.Request().Context(), caller(c), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, report)
}
