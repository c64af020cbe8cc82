package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"legacy/config"
	"legacy/middleware"
	"legacy/routes"
	"legacy/utils"
	"legacy/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEGACY: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry error reporting if configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize blob storage
	store, err := utils.NewS3Store(config.AppConfig.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// AI captioning is optional; without an API key uploads simply get no
	// generated caption.
	var captioner utils.CaptionGenerator
	if config.AppConfig.GeminiAPIKey != "" {
		captioner = utils.NewGeminiCaptioner(config.AppConfig.GeminiAPIKey)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Initialize and start the capsule worker
	capsuleWorker := worker.NewCapsuleWorker(config.DB, store, log.New(os.Stdout, "CAPSULE: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go capsuleWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, store, captioner)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
