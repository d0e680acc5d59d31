package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-social/backend/internal/cache"
	"github.com/anonto42/nano-social/backend/internal/health"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/router"
	"github.com/anonto42/nano-social/backend/internal/storage"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// openRepositories builds the repositories for the configured drivers and
// returns the pinger the store monitor watches.
func openRepositories(ctx context.Context, cfg *config.Config, db *config.DB, deps *router.Dependencies) (health.Pinger, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("Using the in-memory store; data is lost on restart")
		mem := repositories.NewMemoryStore()
		deps.Users, deps.Posts, deps.Notifications = mem, mem, mem
		if db.Postgres != nil {
			return db, nil
		}
		return mem, nil
	}

	database := db.Mongo.Database(cfg.MongoDatabase)
	users := repositories.NewMongoUserRepository(database)
	if err := users.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	posts := repositories.NewMongoPostRepository(database)
	if err := posts.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	deps.Users, deps.Posts = users, posts

	if db.Postgres == nil {
		notifications := repositories.NewMongoNotificationRepository(database)
		if err := notifications.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		deps.Notifications = notifications
	}
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	deps := router.Dependencies{Config: cfg}
	pinger, err := openRepositories(ctx, cfg, db, &deps)
	if err != nil {
		log.Fatalf("Failed to prepare repositories: %v", err)
	}
	if db.Postgres != nil {
		if err := repositories.MigrateNotifications(db.Postgres); err != nil {
			log.Fatalf("Failed to migrate notifications: %v", err)
		}
		deps.Notifications = repositories.NewPostgresNotificationRepository(db.Postgres)
	}

	if cfg.RedisAddr != "" {
		unread := cache.NewUnreadCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.UnreadCacheTTL)
		defer unread.Close()
		if err := unread.Ping(ctx); err != nil {
			log.Warnf("Redis is unreachable, unread counts will fall back to the store: %v", err)
		}
		deps.Unread = unread
	}

	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		deps.Identity = app.AuthClient
		if cfg.UploadBackend == config.UploadsFirebase {
			bucket, err := app.Bucket(ctx, cfg.FirebaseStorageBucket)
			if err != nil {
				log.Fatalf("Failed to open storage bucket: %v", err)
			}
			deps.Blobs = storage.NewFirebaseStore(bucket, cfg.FirebaseStorageBucket)
		}
	}
	if deps.Blobs == nil {
		local, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatalf("Failed to prepare upload directory: %v", err)
		}
		deps.Blobs = local
	}

	deps.Monitor = health.NewMonitor(pinger, cfg.StorePingInterval)
	deps.Monitor.Check(ctx)
	go deps.Monitor.Run(ctx)

	e := router.New(deps)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()

	go func() {
		log.Infof("Listening on :%s (metrics on :%s)", cfg.Port, cfg.MetricsPort)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down server: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down metrics server: %v", err)
	}
}
