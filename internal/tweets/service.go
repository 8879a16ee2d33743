// Package tweets drives a draft through its lifecycle: generation, moderation,
// scheduling and publishing.
package tweets

import (
	"context"
	"strings"
	"time"

	"github.com/bilgisen/tweetdesk/internal/ai"
	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/bilgisen/tweetdesk/internal/storage"
	"github.com/bilgisen/tweetdesk/internal/twitter"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 100000

	defaultScheduleInterval = time.Hour
)

// ErrInvalidTransition is matched by errors.Is when a status change is not allowed
var ErrInvalidTransition = &apperr.Error{Kind: apperr.KindValidation, Reason: "invalid_transition"}

func invalidTransition(op, format string, args ...interface{}) error {
	e := apperr.Validation(op, format, args...)
	e.Reason = ErrInvalidTransition.Reason
	return e
}

// Drafter produces the candidates of one batch
type Drafter interface {
	Generate(ctx context.Context, in ai.Input) ([]ai.Candidate, error)
}

// ArticleSource looks up CMS articles by id
type ArticleSource interface {
	Fetch(ctx context.Context, id string) (*models.Article, error)
}

// Publisher posts text to the social platform
type Publisher interface {
	Publish(ctx context.Context, text string) (twitter.Result, error)
}

// Markers remember which drafts already reached the platform
type Markers interface {
	PublishedID(ctx context.Context, draftID string) (string, bool, error)
	MarkPublished(ctx context.Context, draftID, externalID string, ttl time.Duration) error
	ClearPublished(ctx context.Context, draftID string) error
	ClaimPublish(ctx context.Context, draftID, token string, ttl time.Duration) (bool, error)
	ReleasePublish(ctx context.Context, draftID, token string) error
}

type Options struct {
	Language  string
	MarkerTTL time.Duration
	// LeaseTTL bounds how long one publish attempt holds a draft
	LeaseTTL time.Duration
}

type Service struct {
	store     *storage.Storage
	generator Drafter
	articles  ArticleSource
	publisher Publisher
	markers   Markers
	opts      Options

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// NewService wires the lifecycle. articles may be nil, in which case generate
// requests must carry the article text themselves.
func NewService(store *storage.Storage, generator Drafter, articles ArticleSource, publisher Publisher, markers Markers, opts Options) *Service {
	if opts.Language == "" {
		opts.Language = "ar"
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 7 * 24 * time.Hour
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Minute
	}
	return &Service{
		store:     store,
		generator: generator,
		articles:  articles,
		publisher: publisher,
		markers:   markers,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.Component("tweets"),
	}
}

// GenerateRequest describes the article a batch is generated for. When only
// ArticleID is given the article is fetched from the CMS.
type GenerateRequest struct {
	ArticleID       string     `json:"articleId"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Tags            []string   `json:"tags"`
	Language        string     `json:"language" validate:"omitempty,oneof=ar en"`
	ScheduleStart   *time.Time `json:"scheduleStart"`
	IntervalMinutes int        `json:"intervalMinutes" validate:"gte=0,lte=10080"`
}

// Generate asks the model for a batch and stores it as pending drafts
func (s *Service) Generate(ctx context.Context, req GenerateRequest) ([]*models.TweetDraft, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		if req.ArticleID == "" {
			return nil, apperr.Validation("tweets.generate", "articleId or title/content is required")
		}
		if s.articles == nil {
			return nil, apperr.Validation("tweets.generate", "article lookup is not configured, send title and content")
		}
		article, err := s.articles.Fetch(ctx, req.ArticleID)
		if err != nil {
			return nil, err
		}
		req.Title, req.Content = article.Title, article.Content
		if len(req.Tags) == 0 {
			req.Tags = article.Tags
		}
	}

	lang := strings.ToLower(req.Language)
	if lang == "" {
		lang = s.opts.Language
	}

	start := time.Now()
	candidates, err := s.generator.Generate(ctx, ai.Input{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		Language: lang,
	})
	if err != nil {
		s.log.Error().Err(err).Str("article_id", req.ArticleID).Msg("Draft generation failed")
		return nil, err
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	if interval == 0 {
		interval = defaultScheduleInterval
	}
	now := s.now().UTC()
	drafts := make([]*models.TweetDraft, 0, len(candidates))
	for i, c := range candidates {
		d := &models.TweetDraft{
			ID:           s.newID(),
			ArticleID:    req.ArticleID,
			ArticleTitle: strings.TrimSpace(req.Title),
			Text:         c.Text,
			Tone:         c.Tone,
			Hashtags:     c.Hashtags,
			Language:     lang,
			Sequence:     i + 1,
			TotalInBatch: len(candidates),
			Status:       models.StatusPending,
			CreatedAt:    now,
		}
		if req.ScheduleStart != nil {
			at := req.ScheduleStart.UTC().Add(time.Duration(i) * interval)
			d.ScheduledAt = &at
		}
		drafts = append(drafts, d)
	}

	if err := s.store.PutBatch(ctx, drafts); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("article_id", req.ArticleID).
		Int("drafts", len(drafts)).
		Dur("duration", time.Since(start)).
		Msg("Generated tweet drafts")
	return drafts, nil
}

// Get returns a draft. Soft-deleted drafts are reported as missing.
func (s *Service) Get(ctx context.Context, id string) (*models.TweetDraft, error) {
	if id == "" {
		return nil, apperr.Validation("tweets.get", "id is required")
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Deleted() {
		return nil, apperr.NotFound("tweets.get", "tweet %s not found", id)
	}
	return d, nil
}

// List pages through drafts newest first. pageSize is clamped to MaxPageSize.
func (s *Service) List(ctx context.Context, f storage.Filter, page, pageSize int) (*storage.Page, error) {
	if page > MaxPage {
		return nil, apperr.Validation("tweets.list", "page must be at most %d", MaxPage)
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.store.List(ctx, f, page, pageSize)
}

// Approve releases a draft for publishing. Drafts that carry a scheduled time
// become scheduled, the rest approved. Approving twice is a no-op.
func (s *Service) Approve(ctx context.Context, id string) (*models.TweetDraft, error) {
	if id == "" {
		return nil, apperr.Validation("tweets.approve", "id is required")
	}
	d, err := s.store.Mutate(ctx, id, func(cur *models.TweetDraft) (models.Status, storage.Update, error) {
		if cur.Deleted() {
			return "", storage.Update{}, apperr.NotFound("tweets.approve", "tweet %s not found", id)
		}
		if cur.Status == models.StatusPosted {
			return "", storage.Update{}, invalidTransition("tweets.approve", "tweet %s is already posted", id)
		}
		if cur.ScheduledAt != nil {
			return models.StatusScheduled, storage.Update{}, nil
		}
		return models.StatusApproved, storage.Update{}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("id", id).Str("status", string(d.Status)).Msg("Tweet approved")
	return d, nil
}

// Schedule sets when a draft goes out. An approved draft becomes scheduled;
// pending and failed drafts keep their status until approved.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (*models.TweetDraft, error) {
	if id == "" {
		return nil, apperr.Validation("tweets.schedule", "id is required")
	}
	if at.IsZero() {
		return nil, apperr.Validation("tweets.schedule", "scheduledTime is required")
	}
	d, err := s.store.Mutate(ctx, id, func(cur *models.TweetDraft) (models.Status, storage.Update, error) {
		if cur.Deleted() {
			return "", storage.Update{}, apperr.NotFound("tweets.schedule", "tweet %s not found", id)
		}
		status := cur.Status
		switch status {
		case models.StatusPosted:
			return "", storage.Update{}, invalidTransition("tweets.schedule", "tweet %s is already posted", id)
		case models.StatusApproved:
			status = models.StatusScheduled
		}
		return status, storage.Update{ScheduledAt: &at}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("id", id).Time("scheduled_at", at).Msg("Tweet scheduled")
	return d, nil
}

// Delete removes a draft in any status
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("tweets.delete", "id is required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.markers.ClearPublished(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("Failed to clear publish marker")
	}
	s.log.Info().Str("id", id).Msg("Tweet deleted")
	return nil
}

// UpdateMetrics stores engagement counters reported by the metrics collector
func (s *Service) UpdateMetrics(ctx context.Context, id string, m models.Metrics) (*models.TweetDraft, error) {
	if id == "" {
		return nil, apperr.Validation("tweets.metrics", "id is required")
	}
	return s.store.UpdateMetrics(ctx, id, m)
}
