package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is any backing store that can report liveness
type Pinger func(ctx context.Context) error

// HealthCheck reports service liveness and, for each named store, whether
// it answered a ping.
func HealthCheck(stores map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		checks := make(map[string]string, len(stores))
		for name, ping := range stores {
			if err := ping(ctx); err != nil {
				checks[name] = "unreachable"
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		return c.JSON(code, map[string]any{
			"status":  status,
			"service": "barrierfree-api",
			"stores":  checks,
		})
	}
}
