package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/middleware"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

var logger = log.New("http")

// envelope is the uniform response body
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func paged(c echo.Context, data any, page, limit int, total int64) error {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta: echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// statusOf maps an error kind to its HTTP status
func statusOf(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindPermission:
		return http.StatusForbidden
	case apperrors.KindStateConflict:
		return http.StatusConflict
	case apperrors.KindExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, err error) error {
	if apperrors.Detailed(err) {
		logger.Errorj(log.JSON{
			"msg":    "request failed",
			"method": c.Request().Method,
			"path":   c.Path(),
			"kind":   apperrors.KindOf(err),
			"error":  err.Error(),
		})
	}
	return c.JSON(statusOf(err), envelope{Error: apperrors.PublicMessage(err)})
}

// repoErr translates repository errors for handlers that call a repository
// directly
func repoErr(op, entity string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrInvalidID) {
		return apperrors.NotFound("%s not found", entity)
	}
	return apperrors.Internal(op, err)
}

// ErrorHandler renders errors that escape the handlers, such as routing
// misses and middleware rejections, in the same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, isString := he.Message.(string); isString {
			msg = s
		}
		if err := c.JSON(he.Code, envelope{Error: msg}); err != nil {
			logger.Error(err)
		}
		return
	}
	if err := fail(c, err); err != nil {
		logger.Error(err)
	}
}

// caller returns the identity resolved by the middleware
func caller(c echo.Context) *services.Caller {
	cl, _ := c.Get(middleware.CallerKey).(*services.Caller)
	return cl
}

// bind decodes and validates the request body
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperrors.Validation("invalid request payload")
	}
	return c.Validate(req)
}

func uintParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("invalid %s", name)
	}
	return uint(id), nil
}

func pageParams(c echo.Context, fallback int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = fallback
	}
	return page, limit
}
