package router

import (
	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/health"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/internal/storage"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/validators"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the collaborators the HTTP surface is built from.
// Unread and Identity are optional and must be left nil when not configured.
type Dependencies struct {
	Config        *config.Config
	Users         repositories.UserRepository
	Posts         repositories.PostRepository
	Notifications repositories.NotificationRepository
	Unread        services.UnreadCache
	Identity      services.IdentityVerifier
	Blobs         storage.BlobStore
	Monitor       *health.Monitor
	Registry      *realtime.Registry
}

// New builds a fully configured Echo instance.
func New(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e)
	SetupRoutes(e, deps)
	return e
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	cfg := deps.Config

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	registry := deps.Registry
	if registry == nil {
		registry = realtime.NewRegistry(cfg.MaxLiveConnections)
	}

	// --- Services ---
	notifications := services.NewNotificationService(deps.Notifications, registry, deps.Unread)
	graph := services.NewGraphService(deps.Users, notifications)
	posts := services.NewPostService(deps.Posts, deps.Users, notifications)
	feed := services.NewFeedService(deps.Users, deps.Posts, cfg.FeedLimit)
	accounts := services.NewAccountService(deps.Users, posts, graph, tokens, deps.Identity)

	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(deps.Monitor).HealthCheck)

	if cfg.UploadBackend == config.UploadsLocal {
		e.Static(storage.URLPrefix, cfg.UploadDir)
	}

	// --- Live channel; the join event carries the token ---
	realtime.NewHandler(registry, tokens).RegisterLiveRoutes(e)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("", deps.Monitor.Middleware())
	handlers.NewAuthHandler(accounts).RegisterAuthRoutes(authGroup)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("",
		middleware.JWTAuthMiddleware(tokens),
		deps.Monitor.Middleware(),
		eMiddleware.BodyLimit("25M"),
	)

	handlers.NewUserHandler(accounts, graph, deps.Blobs).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(graph, accounts).RegisterFollowRoutes(api)
	handlers.NewFeedHandler(feed).RegisterFeedRoutes(api)
	handlers.NewPostHandler(posts, deps.Blobs).RegisterPostRoutes(api)
	handlers.NewLikeHandler(posts).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(posts).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(notifications).RegisterNotificationRoutes(api)

	log.Debug("All routes configured.")
}
