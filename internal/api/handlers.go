package api

import (
	"context"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/middleware"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/bilgisen/tweetdesk/internal/storage"
	"github.com/bilgisen/tweetdesk/internal/tweets"
	"github.com/bilgisen/tweetdesk/internal/uploads"
	"github.com/gofiber/fiber/v2"
)

// Presigner issues upload URLs
type Presigner interface {
	PresignPut(ctx context.Context, filename, contentType string) (*uploads.Upload, error)
}

type Handlers struct {
	tweets    *tweets.Service
	uploads   Presigner
	validator *middleware.Validator
	ping      func(ctx context.Context) error
}

// NewHandlers builds the HTTP handlers. uploads may be nil when R2 is not
// configured; ping reports backing store health and may be nil.
func NewHandlers(svc *tweets.Service, uploads Presigner, ping func(ctx context.Context) error) *Handlers {
	return &Handlers{
		tweets:    svc,
		uploads:   uploads,
		validator: middleware.NewValidator(),
		ping:      ping,
	}
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	redisStatus := "ok"
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			redisStatus = "unavailable"
		}
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"status": "ok",
		"redis":  redisStatus,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type listQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=pending scheduled approved posted failed"`
	Search string `query:"search" validate:"max=200"`
	Page   int    `query:"page" validate:"gte=0,lte=100000"`
	Limit  int    `query:"limit" validate:"gte=0"`
}

// ListTweets handles GET /api/v1/tweets
func (h *Handlers) ListTweets(c *fiber.Ctx) error {
	var q listQuery
	if err := h.validator.ParseQuery(c, &q); err != nil {
		return err
	}
	status, _ := models.ParseStatus(q.Status)

	page, err := h.tweets.List(c.UserContext(), storage.Filter{Status: status, Search: q.Search}, q.Page, q.Limit)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, page)
}

// GetTweet handles GET /api/v1/tweets/:id
func (h *Handlers) GetTweet(c *fiber.Ctx) error {
	d, err := h.tweets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

// GenerateTweets handles POST /api/v1/tweets/generate
func (h *Handlers) GenerateTweets(c *fiber.Ctx) error {
	var req tweets.GenerateRequest
	if err := h.validator.ParseBody(c, &req); err != nil {
		return err
	}
	drafts, err := h.tweets.Generate(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, drafts)
}

// ApproveTweet handles POST /api/v1/tweets/:id/approve
func (h *Handlers) ApproveTweet(c *fiber.Ctx) error {
	d, err := h.tweets.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

type scheduleRequest struct {
	ScheduledTime *time.Time `json:"scheduledTime" validate:"required"`
}

// ScheduleTweet handles POST /api/v1/tweets/:id/schedule
func (h *Handlers) ScheduleTweet(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := h.validator.ParseBody(c, &req); err != nil {
		return err
	}
	d, err := h.tweets.Schedule(c.UserContext(), c.Params("id"), *req.ScheduledTime)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

// PublishTweet handles POST /api/v1/tweets/:id/publish
func (h *Handlers) PublishTweet(c *fiber.Ctx) error {
	d, err := h.tweets.Publish(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

// UpdateMetrics handles PUT /api/v1/tweets/:id/metrics
func (h *Handlers) UpdateMetrics(c *fiber.Ctx) error {
	var m models.Metrics
	if err := h.validator.ParseBody(c, &m); err != nil {
		return err
	}
	d, err := h.tweets.UpdateMetrics(c.UserContext(), c.Params("id"), m)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

// DeleteTweet handles DELETE /api/v1/tweets/:id
func (h *Handlers) DeleteTweet(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.tweets.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, fiber.Map{"id": id})
}

type presignRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
}

// PresignUpload handles POST /api/v1/uploads/presign
func (h *Handlers) PresignUpload(c *fiber.Ctx) error {
	if h.uploads == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "uploads are not configured")
	}
	var req presignRequest
	if err := h.validator.ParseBody(c, &req); err != nil {
		return err
	}
	up, err := h.uploads.PresignPut(c.UserContext(), req.Filename, req.ContentType)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, up)
}

// NotFound handles unknown routes
func NotFound(c *fiber.Ctx) error {
	return apperr.NotFound("api.route", "endpoint %s %s not found", c.Method(), c.Path())
}
