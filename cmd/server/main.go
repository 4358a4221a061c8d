// Package main is the entry point for the StrayMap backend server.
// It provides a REST API for the community stray-animal reporting board:
// reports pinned to map coordinates, photo attachments, volunteer case
// claims, status transitions, an append-only update feed, and a contact
// inbox.
//
// Architecture:
//   - Reports and updates live in PostgreSQL; claim, close and fake-delete
//     are optimistic conditional writes (zero affected rows = conflict or
//     permission denied, never silently ignored)
//   - Photos go to an object store bucket and only their public URLs are
//     persisted
//   - No user accounts: claim ownership is proven by an opaque token held
//     on the claimant's device
//   - A background reaper releases claims abandoned past the configured TTL
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/straymap/straymap-server/internal/config"
	"github.com/straymap/straymap-server/internal/database"
	"github.com/straymap/straymap-server/internal/handlers"
	"github.com/straymap/straymap-server/internal/middleware"
	"github.com/straymap/straymap-server/internal/services"
	"github.com/straymap/straymap-server/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting StrayMap server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"storage_bucket", cfg.StorageBucket,
	)

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(context.Background(), db); err != nil {
		sugar.Fatalf("Failed to initialize schema: %v", err)
	}

	// Redis backs the rate limiter and the latest-feed cache; the server
	// runs degraded but fine without it.
	var rdb *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		sugar.Warnw("Invalid REDIS_URL, cache and rate limiting disabled", "error", err)
	} else {
		rdb = redis.NewClient(opts)
	}

	// Initialize services
	uploads := storage.NewClient(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket, sugar)
	notifier := services.NewNotifier(cfg.NotifyURL, cfg.NotifyKey, sugar)
	reportSvc := services.NewReportService(db, rdb, sugar)
	updateSvc := services.NewUpdateService(db, reportSvc, sugar)
	messageSvc := services.NewMessageService(db, sugar)
	reaper := services.NewReaperWorker(reportSvc,
		time.Duration(cfg.ClaimTTLHours)*time.Hour, sugar)

	// Start background claim reaper
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go reaper.Start(reaperCtx, time.Duration(cfg.ReaperIntervalMinute)*time.Minute)

	// Initialize handlers
	reportHandler := handlers.NewReportHandler(reportSvc, uploads, sugar)
	updateHandler := handlers.NewUpdateHandler(updateSvc, uploads, sugar)
	messageHandler := handlers.NewMessageHandler(messageSvc, notifier, sugar)
	adminHandler := handlers.NewAdminHandler(cfg.AdminPasswordHash, cfg.JWTSecret, messageSvc, reportSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(rdb, cfg.RateLimitRPM, sugar))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Report endpoints (public, no auth required)
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reportHandler.Create)
			r.Get("/", reportHandler.List)
			r.Get("/latest", reportHandler.Latest)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reportHandler.Get)
				r.Post("/images", reportHandler.UploadImages)
				r.Post("/claim", reportHandler.Claim)
				r.Post("/close", reportHandler.Close)
				r.Get("/updates", updateHandler.List)
				r.Post("/updates", updateHandler.Add)
			})
		})

		// Contact / happy-story inbox
		r.Post("/messages", messageHandler.Submit)

		// Moderation endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(cfg.JWTSecret))
				r.Get("/messages", adminHandler.Messages)
				r.Delete("/reports/{id}", adminHandler.DeleteReport)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")
	stopReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
