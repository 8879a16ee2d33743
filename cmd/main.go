package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/tweetdesk/internal/api"
	"github.com/bilgisen/tweetdesk/internal/app"
	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.LogPretty || !cfg.IsProduction(),
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting tweetdesk...")

	components, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		log.Info().Msg("Closing Redis client...")
		if err := components.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}()

	var presigner api.Presigner
	if components.Uploads != nil {
		presigner = components.Uploads
	}
	handlers := api.NewHandlers(components.Tweets, presigner, func(ctx context.Context) error {
		return components.Redis.Client().Ping(ctx).Err()
	})

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(requestid.New())
	fiberApp.Use(middleware.RequestLogger())

	api.SetupRoutes(fiberApp, handlers, cfg)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
