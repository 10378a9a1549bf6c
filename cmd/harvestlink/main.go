package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/harvestlink/harvestlink/internal/config"
	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/handlers"
	"github.com/harvestlink/harvestlink/internal/jobs"
	"github.com/harvestlink/harvestlink/internal/lock"
	"github.com/harvestlink/harvestlink/internal/middleware"
	"github.com/harvestlink/harvestlink/internal/services"
	slackutil "github.com/harvestlink/harvestlink/internal/slack"
)

// redisLockTTL bounds how long a crashed holder can keep a customer locked
const redisLockTTL = 30 * time.Second

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting harvestlink order service...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/login",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	detectionDefaults, err := config.LoadDetectionDefaults(cfg.DetectionConfig)
	if err != nil {
		log.Fatalf("Failed to load detection defaults: %v", err)
	}

	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	if err := database.InitializeDefaults(detectionDefaults); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}
	db := database.GetDB()

	// Per-customer lock: Redis when several instances share the database
	var locker lock.Locker
	httpHandler := handlers.NewHTTPHandler(db)
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLockerFromURL(cfg.RedisURL, redisLockTTL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis locker: %v", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
		httpHandler.AddCheck("redis", redisLocker.Ping)
		log.Printf("Using Redis customer locks")
	} else {
		locker = lock.NewKeyedMutex()
		log.Printf("Using in-process customer locks (single instance only)")
	}
	locker = lock.WithTimeout(locker, cfg.LockTimeout)

	// Notifications: dashboards always, Slack when configured
	eventHub := handlers.NewEventHub()
	notifier := services.MultiNotifier{eventHub}

	var slackNotifier *slackutil.Notifier
	if cfg.SlackEnabled() {
		slackNotifier = slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel)
		notifier = append(notifier, slackNotifier)
		verifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := slackNotifier.Verify(verifyCtx); err != nil {
			log.Printf("Warning: Slack channel %s is not usable yet: %v", cfg.SlackChannel, err)
		}
		cancel()
		log.Printf("Slack notifications ENABLED for channel %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications DISABLED (set SLACK_BOT_TOKEN to enable)")
	}

	detector := services.NewDetectionService(db)
	marker := services.NewSuspicionMarker(db)
	orderService := services.NewOrderService(db, detector, marker, locker, notifier)
	mergeService := services.NewMergeService(db, locker, notifier)

	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuthMiddleware).SetupRoutes(mux)
	handlers.NewOrderHandler(orderService, mergeService).SetupRoutes(mux)
	handlers.NewSettingsHandler(detector).SetupRoutes(mux)
	eventHub.SetupRoutes(mux)

	// CORS first, then request IDs and access logging, then JWT authentication
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	handler := corsMiddleware.Wrap(
		middleware.RequestIDMiddleware(
			middleware.AccessLogMiddleware(
				jwtAuthMiddleware.Wrap(mux))))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopJobs := make(chan struct{})
	if slackNotifier != nil {
		go jobs.NewSuspicionDigest(db, slackNotifier).Start(stopJobs)
		log.Printf("Suspicion digest job started")
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Received shutdown signal, cleaning up...")
	close(stopJobs)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	log.Println("Shutdown complete")
}
