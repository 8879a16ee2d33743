package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/redis/go-redis/v9"
)

// mgetChunk bounds how many records one MGET pulls
const mgetChunk = 200

// Filter narrows a listing. Zero values mean "no filter".
type Filter struct {
	Status models.Status
	Search string
}

// Page is one window of a listing. Total counts every match, not just this page.
type Page struct {
	Items    []*models.TweetDraft `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

// List returns drafts newest (by scheduled, else created, time) first.
// Without a search term the window is read straight off the index. With one,
// every id in the index is loaded and filtered before paginating.
func (s *Storage) List(ctx context.Context, f Filter, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	index := s.allKey()
	if f.Status != "" {
		index = s.statusKey(f.Status)
	}
	result := &Page{Items: []*models.TweetDraft{}, Page: page, PageSize: pageSize}
	// start stays negative when the window lies past MaxInt64
	start := int64(-1)
	if int64(page-1) <= (math.MaxInt64-int64(pageSize))/int64(pageSize) {
		start = int64(page-1) * int64(pageSize)
	}

	if strings.TrimSpace(f.Search) == "" {
		total, err := s.rdb.ZCard(ctx, index).Result()
		if err != nil {
			return nil, fmt.Errorf("redis zcard: %w", err)
		}
		result.Total = total
		if start < 0 || start >= total {
			return result, nil
		}
		ids, err := s.rdb.ZRevRange(ctx, index, start, start+int64(pageSize)-1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis zrevrange: %w", err)
		}
		items, err := s.load(ctx, ids)
		if err != nil {
			return nil, err
		}
		result.Items = items
		return result, nil
	}

	ids, err := s.rdb.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	all, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, d := range all {
		if d.Matches(f.Search) {
			matched = append(matched, d)
		}
	}
	result.Total = int64(len(matched))
	if start >= 0 && start < result.Total {
		end := start + int64(pageSize)
		if end > result.Total {
			end = result.Total
		}
		result.Items = matched[start:end]
	}
	return result, nil
}

// Due returns publishable drafts: every approved one, plus scheduled ones whose
// time has come (score <= until, in unix millis).
func (s *Storage) Due(ctx context.Context, untilMillis int64, limit int) ([]*models.TweetDraft, error) {
	if limit < 1 {
		return []*models.TweetDraft{}, nil
	}
	approved, err := s.rdb.ZRange(ctx, s.statusKey(models.StatusApproved), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange approved: %w", err)
	}
	remaining := limit - len(approved)
	var scheduled []string
	if remaining > 0 {
		scheduled, err = s.rdb.ZRangeByScore(ctx, s.statusKey(models.StatusScheduled), &redis.ZRangeBy{
			Min: "-inf", Max: strconv.FormatInt(untilMillis, 10), Count: int64(remaining),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("redis zrangebyscore scheduled: %w", err)
		}
	}
	return s.load(ctx, append(approved, scheduled...))
}

// load fetches records in id order. Ids whose record vanished or is
// soft-deleted are skipped.
func (s *Storage) load(ctx context.Context, ids []string) ([]*models.TweetDraft, error) {
	out := make([]*models.TweetDraft, 0, len(ids))
	for i := 0; i < len(ids); i += mgetChunk {
		end := i + mgetChunk
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]string, 0, end-i)
		for _, id := range ids[i:end] {
			keys = append(keys, s.recordKey(id))
		}
		vals, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		for j, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var d models.TweetDraft
			if err := json.Unmarshal([]byte(str), &d); err != nil {
				logger.Get().Warn().Err(err).Str("id", ids[i+j]).Msg("Skipping undecodable tweet record")
				continue
			}
			if d.Deleted() {
				continue
			}
			out = append(out, &d)
		}
	}
	return out, nil
}
