package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"permit-portal/signing-backend/internal/admin"
	"permit-portal/signing-backend/internal/composer"
	"permit-portal/signing-backend/internal/config"
	"permit-portal/signing-backend/internal/delivery"
	"permit-portal/signing-backend/internal/registry"
	"permit-portal/signing-backend/internal/signing"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Secrets come from the environment; .env is a local convenience.
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("Incomplete configuration, submissions will fail at delivery", zap.Error(err))
	}

	// The source permit is process-wide shared immutable state. Failing to
	// find it halts the flow before the server comes up.
	source, err := os.ReadFile(cfg.Document.SourcePath)
	if err != nil {
		logger.Fatal("Source permit document not found, verify it is deployed alongside the service",
			zap.String("path", cfg.Document.SourcePath),
			zap.Error(err))
	}
	if _, err := composer.PageCount(source); err != nil {
		logger.Fatal("Source permit document is not a readable PDF",
			zap.String("path", cfg.Document.SourcePath),
			zap.Error(err))
	}

	// Wire the signing pipeline
	store := registry.NewFileStore(cfg.Registry.Path)
	comp := composer.New(composer.DefaultOptions())
	mailer := delivery.NewMailer(delivery.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		Recipient: cfg.SMTP.Recipient,
		Timeout:   cfg.SMTP.Timeout(),
	}, logger)

	signingService := signing.NewService(source, cfg.Document.SignedName, store, comp, mailer, logger)
	signingHandler := signing.NewHandler(signingService, cfg.Document.DownloadName, logger)

	adminHandler := admin.NewHandler(store, admin.Config{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    []byte(cfg.Admin.JWTSecret),
		TokenTTL:     cfg.Admin.TokenTTL(),
	}, logger)

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		signingHandler.RegisterRoutes(api)
		adminHandler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
