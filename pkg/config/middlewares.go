package config

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// SetupMiddleware configures global Echo middleware. requestTimeout bounds each
// request's context, which every store and collaborator call inherits.
func SetupMiddleware(e *echo.Echo, requestTimeout time.Duration) {
	e.Logger.SetLevel(log.INFO)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := log.JSON{"method": v.Method, "uri": v.URI, "status": v.Status, "latency": v.Latency.String()}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
			}
			c.Logger().Infoj(fields)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: requestTimeout}))
}
