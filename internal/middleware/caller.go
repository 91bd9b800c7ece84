package middleware

import (
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ResolveCaller maps the verified identity to a stored user, registering
// first-seen identities, and stores the *services.Caller under CallerKey.
// It must run after one of the token middlewares.
func ResolveCaller(guard *services.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, _ := c.Get(IdentityKey).(string)
			name, _ := c.Get(NameKey).(string)
			caller, err := guard.EnsureUser(c.Request().Context(), uid, name)
			if err != nil {
				return err
			}
			c.Set(CallerKey, caller)
			return next(c)
		}
	}
}
