package router

import (
	"log"

	"github.com/anonto42/barrierfree/backend/internal/handlers"
	"github.com/anonto42/barrierfree/backend/internal/middleware"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// Routes carries what SetupRoutes needs beyond the services
type Routes struct {
	Stores   *Stores
	Auth     echo.MiddlewareFunc // verifies the bearer token and sets the identity
	Liveness map[string]handlers.Pinger
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, svc *services.Services, r Routes) {
	e.HTTPErrorHandler = handlers.ErrorHandler

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(r.Liveness))

	// --- Protected routes (identity required) ---
	api := e.Group("/api/v1")
	api.Use(r.Auth, middleware.ResolveCaller(svc.Guard))
	log.Println("Identity middleware applied to /api/v1 group.")

	handlers.NewUserHandler(svc.Social).RegisterProfileRoutes(api)
	handlers.NewIssueHandler(svc.Issues, r.Stores.Users, r.Stores.Likes).RegisterIssueRoutes(api)
	handlers.NewProjectHandler(svc.Proposals, svc.Projects, svc.Completion).RegisterProjectRoutes(api)
	handlers.NewCertificationHandler(svc.Guard, svc.Certification, svc.Stats).RegisterCertificationRoutes(api)
	handlers.NewFollowHandler(svc.Social).RegisterFollowRoutes(api)
	handlers.NewLikeHandler(svc.Social).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(svc.Social).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(r.Stores.Notifications, r.Stores.Users).RegisterNotificationRoutes(api)

	log.Println("All routes configured.")
}
