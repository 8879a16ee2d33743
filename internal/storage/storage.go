package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries on a contended record
const maxTxRetries = 10

// ErrAlreadyExists is returned by Put when the id is taken
var ErrAlreadyExists = &apperr.Error{Kind: apperr.KindConflict, Reason: "already_exists"}

// Storage is the tweet queue on Redis.
//
// Keys (all under the configured prefix):
//
//	tweet:{id}              JSON record
//	tweets:all              sorted set of ids, score = order time
//	tweets:status:{status}  sorted set of ids per status, score = order time
type Storage struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewStorage(rdb *redis.Client, prefix string) *Storage {
	return &Storage{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Storage) recordKey(id string) string { return s.prefix + "tweet:" + id }
func (s *Storage) allKey() string             { return s.prefix + "tweets:all" }
func (s *Storage) statusKey(st models.Status) string {
	return s.prefix + "tweets:status:" + string(st)
}

func score(d *models.TweetDraft) float64 {
	return float64(d.OrderTime().UnixMilli())
}

// Get returns the draft stored under id
func (s *Storage) Get(ctx context.Context, id string) (*models.TweetDraft, error) {
	return s.get(ctx, s.rdb, id)
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Storage) get(ctx context.Context, c getter, id string) (*models.TweetDraft, error) {
	data, err := c.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("storage.get", "tweet %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	var d models.TweetDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode tweet %s: %w", id, err)
	}
	return &d, nil
}

// Put inserts a new draft. The id must not exist yet.
func (s *Storage) Put(ctx context.Context, d *models.TweetDraft) error {
	return s.PutBatch(ctx, []*models.TweetDraft{d})
}

// PutBatch inserts several drafts in one transaction. Either all of them are
// stored or, on any invalid or taken id, none.
func (s *Storage) PutBatch(ctx context.Context, drafts []*models.TweetDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	now := s.now().UTC()
	keys := make([]string, 0, len(drafts))
	payloads := make([][]byte, 0, len(drafts))
	for _, d := range drafts {
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now
		if msg := d.Validate(); msg != "" {
			return apperr.Validation("storage.put", "invalid tweet %s: %s", d.ID, msg)
		}
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode tweet %s: %w", d.ID, err)
		}
		keys = append(keys, s.recordKey(d.ID))
		payloads = append(payloads, data)
	}

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		for i, key := range keys {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return &apperr.Error{Kind: apperr.KindConflict, Op: "storage.put", Reason: "already_exists",
					Msg: fmt.Sprintf("tweet %s already exists", drafts[i].ID)}
			}
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for i, d := range drafts {
				p.Set(ctx, keys[i], payloads[i], 0)
				// soft-deleted records are kept for audit but never indexed
				if !d.Deleted() {
					p.ZAdd(ctx, s.allKey(), redis.Z{Score: score(d), Member: d.ID})
					p.ZAdd(ctx, s.statusKey(d.Status), redis.Z{Score: score(d), Member: d.ID})
				}
			}
			return nil
		})
		return err
	}, keys...)
}

// Update carries the mutable fields of a status change. Nil pointers leave a field untouched.
type Update struct {
	ScheduledAt  *time.Time
	PostedAt     *time.Time
	ExternalID   *string
	ExternalURL  *string
	ErrorMessage *string
}

// Mutator decides the change for the current record inside the transaction.
// Returning an error aborts the update.
type Mutator func(current *models.TweetDraft) (models.Status, Update, error)

// UpdateStatus sets a new status plus fields on an existing draft, atomically
func (s *Storage) UpdateStatus(ctx context.Context, id string, status models.Status, u Update) (*models.TweetDraft, error) {
	return s.Mutate(ctx, id, func(*models.TweetDraft) (models.Status, Update, error) {
		return status, u, nil
	})
}

// Mutate reads the draft, applies fn and writes the result in one optimistic
// transaction, retried when another writer touches the record first.
// The written record must pass TweetDraft.Validate.
func (s *Storage) Mutate(ctx context.Context, id string, fn Mutator) (*models.TweetDraft, error) {
	key := s.recordKey(id)
	var result *models.TweetDraft

	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		oldStatus, oldScore := cur.Status, score(cur)

		status, u, err := fn(cur)
		if err != nil {
			return err
		}
		next := *cur
		applyUpdate(&next, status, u)
		next.UpdatedAt = s.now().UTC()
		if msg := next.Validate(); msg != "" {
			return apperr.Validation("storage.update", "tweet %s: %s", id, msg)
		}

		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("encode tweet %s: %w", id, err)
		}
		newScore := score(&next)

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			if oldStatus != next.Status {
				p.ZRem(ctx, s.statusKey(oldStatus), id)
			}
			if next.Deleted() {
				return nil
			}
			if oldStatus != next.Status || oldScore != newScore {
				p.ZAdd(ctx, s.statusKey(next.Status), redis.Z{Score: newScore, Member: id})
				p.ZAdd(ctx, s.allKey(), redis.Z{Score: newScore, Member: id})
			}
			return nil
		})
		if err == nil {
			result = &next
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyUpdate(d *models.TweetDraft, status models.Status, u Update) {
	d.Status = status
	if u.ScheduledAt != nil {
		t := u.ScheduledAt.UTC()
		d.ScheduledAt = &t
	}
	if u.PostedAt != nil {
		t := u.PostedAt.UTC()
		d.PostedAt = &t
	}
	if u.ExternalID != nil {
		d.ExternalID = *u.ExternalID
	}
	if u.ExternalURL != nil {
		d.ExternalURL = *u.ExternalURL
	}
	if u.ErrorMessage != nil {
		d.ErrorMessage = *u.ErrorMessage
	}
	// errorMessage only describes the latest failed attempt
	if status != models.StatusFailed {
		d.ErrorMessage = ""
	}
}

// UpdateMetrics overwrites the engagement counters of a draft
func (s *Storage) UpdateMetrics(ctx context.Context, id string, m models.Metrics) (*models.TweetDraft, error) {
	if m.Likes < 0 || m.Retweets < 0 || m.Replies < 0 || m.Impressions < 0 {
		return nil, apperr.Validation("storage.metrics", "metrics must not be negative")
	}
	key := s.recordKey(id)
	var result *models.TweetDraft
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		cur.Metrics = m
		cur.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode tweet %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = cur
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a draft permanently
func (s *Storage) Delete(ctx context.Context, id string) error {
	key := s.recordKey(id)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.ZRem(ctx, s.allKey(), id)
			p.ZRem(ctx, s.statusKey(cur.Status), id)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %v: too much contention", keys)
}
