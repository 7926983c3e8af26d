package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/handlers"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	blobStore, err := storage.NewCloudStore(cfg.MinIO)
	if err != nil {
		log.Fatalf("blob store initialization failed: %v", err)
	}
	if err := blobStore.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring bucket: %v", err)
	}

	userService := services.NewUserService(db, cfg.Storage.QuotaBytes)
	folderService := services.NewFolderService(db)
	fileService := services.NewFileService(db)
	itemService := services.NewItemService(db)

	authHandler := handlers.NewAuthHandler(userService, blobStore)
	filesHandler := handlers.NewFilesHandler(userService, fileService, folderService, blobStore)
	foldersHandler := handlers.NewFoldersHandler(folderService, blobStore)
	driveHandler := handlers.NewDriveHandler(itemService, fileService, folderService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: int(cfg.Storage.MaxUploadBytes)})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Put("/sort-preference", authMiddleware.RequireAuth, authHandler.SetSortPreference)
	authRoutes.Delete("/me", authMiddleware.RequireAuth, authHandler.DeleteAccount)

	driveRoutes := api.Group("/drive", authMiddleware.RequireAuth)
	driveRoutes.Get("/", driveHandler.Home)
	driveRoutes.Get("/favorites", driveHandler.Favorites)
	driveRoutes.Get("/search", driveHandler.Search)
	driveRoutes.Get("/recent", driveHandler.Recent)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id", driveHandler.Folder)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Put("/:id", foldersHandler.Update)
	folderRoutes.Put("/:id/favorite", foldersHandler.ToggleFavorite)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Get("/:id/download", filesHandler.Download)
	fileRoutes.Get("/:id/download-url", filesHandler.DownloadURL)
	fileRoutes.Put("/:id", filesHandler.Update)
	fileRoutes.Put("/:id/favorite", filesHandler.ToggleFavorite)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"quota_bytes": cfg.Storage.QuotaBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
