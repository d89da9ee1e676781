package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/database"
	"github.com/Dias221467/TimeCapsule/internal/handlers"
	"github.com/Dias221467/TimeCapsule/internal/jobs"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/internal/scheduler"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/internal/storage"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg)
	if err != nil {
		logger.Log.Fatalf("Database connection error: %v", err)
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Log.Fatalf("Failed to create indexes: %v", err)
	}

	blobs, err := storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		logger.Log.Fatalf("Storage setup error: %v", err)
	}

	// --- Repositories ---
	capsuleRepo := repository.NewCapsuleRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Services ---
	notificationService := services.NewNotificationService(notificationRepo)
	feedService := services.NewFeedService(capsuleRepo, groupRepo, userRepo)
	ledgerService := services.NewLedgerService(capsuleRepo, groupRepo, notificationService)
	capsuleService := services.NewCapsuleService(capsuleRepo, groupRepo, userRepo, notificationService, blobs)
	userService := services.NewUserService(userRepo, notificationService)
	tagService := services.NewTagService(capsuleRepo)

	// --- Handlers ---
	capsuleHandler := handlers.NewCapsuleHandler(capsuleService, feedService, ledgerService)
	userHandler := handlers.NewUserHandler(userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	tagHandler := handlers.NewTagHandler(tagService)

	// --- Background jobs ---
	sweeper := jobs.NewOpenSweeper(capsuleRepo, groupRepo, notificationService)
	cron := scheduler.New(logger.Log)
	if err := cron.Every(cfg.SweepInterval, "capsule opening sweep", sweeper); err != nil {
		logger.Log.Fatalf("Failed to schedule sweeper: %v", err)
	}

	router := newRouter(cfg.JWTSecret, capsuleHandler, userHandler, notificationHandler, tagHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Infof("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		cron.Start()
		<-gctx.Done()
		logger.Log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := cron.Stop(shutdownCtx); err != nil {
			logger.Log.WithError(err).Warn("Sweeper did not stop in time")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return db.Client().Disconnect(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Fatalf("Server error: %v", err)
	}
}

func newRouter(secret string, capsules *handlers.CapsuleHandler, users *handlers.UserHandler, notifications *handlers.NotificationHandler, tags *handlers.TagHandler) *mux.Router {
	auth := middleware.AuthMiddleware(secret)
	optional := middleware.OptionalAuthMiddleware(secret)
	protected := func(f http.HandlerFunc) http.Handler { return auth(f) }
	open := func(f http.HandlerFunc) http.Handler { return optional(f) }

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")

	// Capsule routes. Fixed paths are registered before /{id}.
	router.Handle("/capsules", protected(capsules.CreateCapsuleHandler)).Methods("POST")
	router.Handle("/capsules/my", protected(capsules.MyCapsulesHandler)).Methods("GET")
	router.Handle("/capsules/feed", protected(capsules.PersonalFeedHandler)).Methods("GET")
	router.Handle("/capsules/subscribed", protected(capsules.SubscribedCapsulesHandler)).Methods("GET")
	router.Handle("/capsules/public", open(capsules.PublicFeedHandler)).Methods("GET")
	router.Handle("/capsules/search", open(capsules.SearchCapsulesHandler)).Methods("GET")
	router.Handle("/capsules/user/{id}", open(capsules.UserCapsulesHandler)).Methods("GET")
	router.Handle("/capsules/{id}", open(capsules.GetCapsuleHandler)).Methods("GET")
	router.Handle("/capsules/{id}", protected(capsules.UpdateCapsuleHandler)).Methods("PUT")
	router.Handle("/capsules/{id}", protected(capsules.DeleteCapsuleHandler)).Methods("DELETE")
	router.Handle("/capsules/{id}/subscription", protected(capsules.ToggleSubscriptionHandler)).Methods("POST")
	router.Handle("/capsules/{id}/reaction", protected(capsules.SetReactionHandler)).Methods("POST")
	router.Handle("/capsules/{id}/allowedUsers/me", protected(capsules.LeaveAllowedUsersHandler)).Methods("DELETE")

	// User routes
	router.Handle("/users", protected(users.RegisterUserHandler)).Methods("POST")
	router.Handle("/users/me/preferredTags", protected(users.SavePreferredTagsHandler)).Methods("PUT")
	router.Handle("/users/{id}", open(users.GetUserHandler)).Methods("GET")
	router.Handle("/users/{id}/follow", protected(users.ToggleFollowHandler)).Methods("POST")

	router.Handle("/notifications", protected(notifications.GetUserNotificationsHandler)).Methods("GET")

	// Tag routes
	router.HandleFunc("/tags", tags.AllTagsHandler).Methods("GET")
	router.HandleFunc("/tags/popular", tags.PopularTagsHandler).Methods("GET")
	router.HandleFunc("/tags/suggestions", tags.SuggestionsHandler).Methods("GET")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)
	return router
}
