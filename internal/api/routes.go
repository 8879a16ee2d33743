package api

import (
	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/bilgisen/tweetdesk/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, cfg *config.Config) {
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	admin := middleware.AdminOnly(cfg.AdminAPIKey)

	tweets := api.Group("/tweets", admin)
	{
		tweets.Get("", h.ListTweets)
		tweets.Post("/generate", h.GenerateTweets)
		tweets.Get("/:id", h.GetTweet)
		tweets.Post("/:id/approve", h.ApproveTweet)
		tweets.Post("/:id/schedule", h.ScheduleTweet)
		tweets.Post("/:id/publish", h.PublishTweet)
		tweets.Put("/:id/metrics", h.UpdateMetrics)
		tweets.Delete("/:id", h.DeleteTweet)
	}

	uploads := api.Group("/uploads", admin)
	uploads.Post("/presign", h.PresignUpload)

	app.Use(NotFound)
}
