package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "legacy/controllers"
	"legacy/middleware"
	"legacy/utils"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)
	authController := controller.NewAuthController(db, authLogger)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected(db))
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Post("/change-password", authController.ChangePassword)
	protectedAuth.Get("/me", authController.GetCurrentUser)
	protectedAuth.Put("/preferences", authController.UpdatePreferences)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, store utils.FileStore, captioner utils.CaptionGenerator) {
	vaultController := controller.NewVaultController(db, log.New(os.Stdout, "VAULT: ", log.LstdFlags))
	mediaController := controller.NewMediaController(db, log.New(os.Stdout, "MEDIA: ", log.LstdFlags), store, captioner)
	noteController := controller.NewNoteController(db, log.New(os.Stdout, "NOTE: ", log.LstdFlags))
	capsuleController := controller.NewCapsuleController(db, log.New(os.Stdout, "CAPSULE: ", log.LstdFlags), store)

	// Public invite preview, reachable without a session
	app.Get("/api/v1/vaults/info/:code", vaultController.GetVaultInfo)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(db), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Vault routes
	vault := api.Group("/vaults")
	vault.Post("/", vaultController.CreateVault)
	vault.Get("/", vaultController.GetVaults)
	vault.Post("/join", vaultController.JoinVault)
	vault.Get("/:id", vaultController.GetVault)
	vault.Put("/:id", vaultController.UpdateVault)
	vault.Delete("/:id", vaultController.DeleteVault)
	vault.Post("/:id/leave", vaultController.LeaveVault)
	vault.Get("/:id/activities", vaultController.GetActivities)

	// Member management
	vault.Put("/:id/members/:memberId", vaultController.UpdateMemberRole)
	vault.Delete("/:id/members/:memberId", vaultController.RemoveMember)

	// Media routes, uploads behind the rate limiter
	vault.Post("/:id/media", middleware.UploadRateLimiter(), mediaController.UploadMedia)
	vault.Put("/:id/media/:mediaId", mediaController.UpdateMedia)
	vault.Delete("/:id/media/:mediaId", mediaController.DeleteMedia)
	vault.Delete("/:id/media/:mediaId/permanent", mediaController.PermanentDeleteMedia)
	vault.Get("/:id/trash", mediaController.GetTrash)
	vault.Post("/:id/media/:mediaId/comments", mediaController.CreateComment)

	// Note routes
	vault.Post("/:id/notes", noteController.CreateNote)

	// Time capsule routes
	vault.Post("/:id/capsules/media", middleware.UploadRateLimiter(), capsuleController.CreateCapsuleMedia)
	vault.Post("/:id/capsules/notes", capsuleController.CreateCapsuleNote)
	vault.Put("/:id/capsules/media/:mediaId/unlock", capsuleController.UnlockMedia)
	vault.Put("/:id/capsules/notes/:noteId/unlock", capsuleController.UnlockNote)
	vault.Get("/:id/capsules", capsuleController.GetCapsules)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, store utils.FileStore, captioner utils.CaptionGenerator) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db, store, captioner)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
