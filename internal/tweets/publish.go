package tweets

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/bilgisen/tweetdesk/internal/storage"
	"github.com/bilgisen/tweetdesk/internal/twitter"
	"github.com/google/uuid"
)

// Summary reports one publish-due sweep
type Summary struct {
	Attempted int `json:"attempted"`
	Posted    int `json:"posted"`
	Failed    int `json:"failed"`
}

// Publish posts an approved or scheduled draft now.
//
// The draft is leased for the duration of the attempt, so concurrent callers
// get a conflict instead of a second platform post. A platform post is recorded
// in a marker before the draft is updated, so a retry after a failed store
// write reconciles the draft without posting twice. On failure the draft is
// marked failed and the error returned.
func (s *Service) Publish(ctx context.Context, id string) (*models.TweetDraft, error) {
	if id == "" {
		return nil, apperr.Validation("tweets.publish", "id is required")
	}
	token := uuid.NewString()
	claimed, err := s.markers.ClaimPublish(ctx, id, token, s.opts.LeaseTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperr.Conflict("tweets.publish", "tweet %s is already being published", id)
	}
	defer func() {
		if err := s.markers.ReleasePublish(context.WithoutCancel(ctx), id, token); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Failed to release publish lease")
		}
	}()

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Status.Publishable() {
		return nil, invalidTransition("tweets.publish", "tweet %s is %s, only approved or scheduled tweets can be published", id, d.Status)
	}

	externalID, done, err := s.markers.PublishedID(ctx, id)
	if err != nil {
		return nil, err
	}

	var res twitter.Result
	if done {
		res = twitter.Result{ExternalID: externalID, ExternalURL: twitter.StatusURL(externalID)}
		s.log.Warn().Str("id", id).Str("external_id", externalID).Msg("Tweet already on X, reconciling record")
	} else {
		res, err = s.publisher.Publish(ctx, d.Text)
		if err != nil {
			return nil, s.recordFailure(ctx, id, err)
		}
		if err := s.markers.MarkPublished(ctx, id, res.ExternalID, s.opts.MarkerTTL); err != nil {
			s.log.Error().Err(err).Str("id", id).Str("external_id", res.ExternalID).Msg("Failed to write publish marker")
		}
	}

	now := s.now().UTC()
	posted, err := s.store.Mutate(ctx, id, func(cur *models.TweetDraft) (models.Status, storage.Update, error) {
		if cur.Deleted() {
			return "", storage.Update{}, apperr.NotFound("tweets.publish", "tweet %s not found", id)
		}
		if !cur.Status.Publishable() {
			return "", storage.Update{}, invalidTransition("tweets.publish", "tweet %s became %s while publishing", id, cur.Status)
		}
		u := storage.Update{
			PostedAt:    &now,
			ExternalID:  &res.ExternalID,
			ExternalURL: &res.ExternalURL,
		}
		if cur.ScheduledAt == nil {
			u.ScheduledAt = &now
		}
		return models.StatusPosted, u, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Str("external_id", res.ExternalID).Msg("Posted to X but failed to update record")
		return nil, err
	}

	s.log.Info().
		Str("id", id).
		Str("external_id", res.ExternalID).
		Msg("Tweet published")
	return posted, nil
}

func (s *Service) recordFailure(ctx context.Context, id string, cause error) error {
	msg := apperr.MessageOf(cause)
	_, err := s.store.Mutate(ctx, id, func(cur *models.TweetDraft) (models.Status, storage.Update, error) {
		return models.StatusFailed, storage.Update{ErrorMessage: &msg}, nil
	})
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Error().Err(err).Str("id", id).Msg("Failed to mark tweet as failed")
	}
	s.log.Error().Err(cause).Str("id", id).Msg("Publish failed")
	return cause
}

// PublishDue publishes every approved draft and every scheduled draft whose
// time has come, up to limit, one at a time.
func (s *Service) PublishDue(ctx context.Context, now time.Time, limit int) (Summary, error) {
	var sum Summary
	due, err := s.store.Due(ctx, now.UnixMilli(), limit)
	if err != nil {
		return sum, err
	}

	start := time.Now()
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		_, err := s.Publish(ctx, d.ID)
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		sum.Attempted++
		if err != nil {
			sum.Failed++
			continue
		}
		sum.Posted++
	}

	s.log.Info().
		Int("attempted", sum.Attempted).
		Int("posted", sum.Posted).
		Int("failed", sum.Failed).
		Dur("duration", time.Since(start)).
		Msg("Publish-due sweep finished")
	return sum, nil
}
