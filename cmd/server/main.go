package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/collaborators"
	"github.com/anonto42/barrierfree/backend/internal/handlers"
	"github.com/anonto42/barrierfree/backend/internal/middleware"
	"github.com/anonto42/barrierfree/backend/internal/router"
	"github.com/anonto42/barrierfree/backend/internal/telemetry"
	"github.com/anonto42/barrierfree/backend/internal/validators"
	"github.com/anonto42/barrierfree/backend/pkg/config"
	"github.com/anonto42/barrierfree/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := telemetry.Setup(cfg.MetricsExporter)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer shutdownMetrics(context.Background())

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	stores, err := router.NewStores(ctx, db)
	if err != nil {
		log.Fatalf("Failed to prepare stores: %v", err)
	}

	auth, media := identity(ctx, cfg)
	svc, err := router.NewServices(cfg, stores, media)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg.StoreTimeout+cfg.AITimeout)
	router.SetupRoutes(e, svc, router.Routes{
		Stores: stores,
		Auth:   auth,
		Liveness: map[string]handlers.Pinger{
			"postgres": db.PingPostgres,
			"mongo":    db.PingMongo,
		},
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error(err)
	}
}

// identity picks the token middleware and the media resolver. Development
// deployments may run on HMAC tokens without Firebase.
func identity(ctx context.Context, cfg *config.Config) (echo.MiddlewareFunc, collaborators.MediaResolver) {
	if cfg.AuthMode == "jwt" {
		if cfg.JWTSecret == "" {
			log.Fatal("AUTH_MODE=jwt requires JWT_SECRET")
		}
		if cfg.Env == "production" {
			log.Fatal("AUTH_MODE=jwt is not allowed in production")
		}
		log.Println("Using HMAC development tokens; media references are served as given.")
		return middleware.JWTAuthMiddleware(cfg.JWTSecret), nil
	}

	// Initialize Firebase
	app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}
	var media collaborators.MediaResolver
	if cfg.FirebaseStorageBucket != "" {
		resolver, err := app.NewMediaResolver(ctx)
		if err != nil {
			log.Fatalf("Failed to open media bucket: %v", err)
		}
		media = resolver
	}
	return middleware.FirebaseAuthMiddleware(app.AuthClient), media
}
