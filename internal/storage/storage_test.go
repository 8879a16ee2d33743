package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	s := NewStorage(rdb, "test:")
	s.now = func() time.Time { return base }
	return s, mr
}

func draft(id string, offset time.Duration) *models.TweetDraft {
	return &models.TweetDraft{
		ID:           id,
		ArticleID:    "a1",
		ArticleTitle: "Cloud report",
		Text:         "draft " + id,
		Tone:         models.ToneProfessional,
		Hashtags:     []string{"cloud"},
		Sequence:     1,
		TotalInBatch: 4,
		Status:       models.StatusPending,
		CreatedAt:    base.Add(offset),
	}
}

func TestPutAndGet(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, draft("t1", 0)))
	assert.True(t, mr.Exists("test:tweet:t1"))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "draft t1", got.Text)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, base, got.UpdatedAt)

	members, err := mr.ZMembers("test:tweets:status:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, members)
}

func TestPutRejectsDuplicateAndInvalid(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, draft("t1", 0)))
	err := s.Put(ctx, draft("t1", time.Minute))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.Equal(t, 409, apperr.HTTPStatus(err))

	bad := draft("t2", 0)
	bad.Sequence = 0
	assert.True(t, errors.Is(s.Put(ctx, bad), apperr.ErrValidation))
}

func TestPutBatchIsAllOrNothing(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, draft("t3", 0)))
	batch := []*models.TweetDraft{draft("t1", 0), draft("t2", time.Minute), draft("t3", 2*time.Minute), draft("t4", 3*time.Minute)}
	err := s.PutBatch(ctx, batch)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.False(t, mr.Exists("test:tweet:t1"))
	assert.False(t, mr.Exists("test:tweet:t2"))
	assert.False(t, mr.Exists("test:tweet:t4"))

	bad := draft("t6", 0)
	bad.Text = ""
	err = s.PutBatch(ctx, []*models.TweetDraft{draft("t5", 0), bad})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.False(t, mr.Exists("test:tweet:t5"))

	require.NoError(t, s.PutBatch(ctx, []*models.TweetDraft{draft("t1", 0), draft("t2", time.Minute)}))
	members, err := mr.ZMembers("test:tweets:all")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, members)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateStatusMovesIndex(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	at := base.Add(time.Hour)
	got, err := s.UpdateStatus(ctx, "t1", models.StatusScheduled, Update{ScheduledAt: &at})
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, got.Status)
	assert.Equal(t, at, *got.ScheduledAt)

	pending, _ := mr.ZMembers("test:tweets:status:pending")
	assert.Empty(t, pending)
	sc, err := mr.ZScore("test:tweets:status:scheduled", "t1")
	require.NoError(t, err)
	assert.Equal(t, float64(at.UnixMilli()), sc)

	// immutable fields survive
	stored, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "draft t1", stored.Text)
	assert.Equal(t, []string{"cloud"}, stored.Hashtags)
}

func TestUpdateStatusRejectsInconsistentRecords(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	_, err := s.UpdateStatus(ctx, "t1", models.StatusPosted, Update{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "posted without postedTime")

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status, "nothing written")

	_, err = s.UpdateStatus(ctx, "missing", models.StatusApproved, Update{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateStatusClearsErrorMessageOutsideFailed(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	msg := "429 Too Many Requests"
	got, err := s.UpdateStatus(ctx, "t1", models.StatusFailed, Update{ErrorMessage: &msg})
	require.NoError(t, err)
	assert.Equal(t, msg, got.ErrorMessage)

	got, err = s.UpdateStatus(ctx, "t1", models.StatusApproved, Update{})
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage)
}

func TestConcurrentUpdatesStayConsistent(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.UpdateStatus(ctx, "t1", models.StatusApproved, Update{})
				return
			}
			msg := fmt.Sprintf("attempt %d failed", i)
			_, _ = s.UpdateStatus(ctx, "t1", models.StatusFailed, Update{ErrorMessage: &msg})
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.Validate())

	total := 0
	for _, st := range models.Statuses {
		page, err := s.List(ctx, Filter{Status: st}, 1, 10)
		require.NoError(t, err)
		total += int(page.Total)
	}
	assert.Equal(t, 1, total, "record indexed under exactly one status")
}

func TestUpdateMetrics(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	got, err := s.UpdateMetrics(ctx, "t1", models.Metrics{Likes: 10, Retweets: 2, Replies: 1, Impressions: 900})
	require.NoError(t, err)
	assert.EqualValues(t, 900, got.Impressions)

	_, err = s.UpdateMetrics(ctx, "t1", models.Metrics{Likes: -1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = s.UpdateMetrics(ctx, "missing", models.Metrics{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDelete(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, draft("t1", 0)))

	require.NoError(t, s.Delete(ctx, "t1"))
	assert.False(t, mr.Exists("test:tweet:t1"))
	all, _ := mr.ZMembers("test:tweets:all")
	assert.Empty(t, all)

	err := s.Delete(ctx, "t1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "second delete is not a silent success")
}

func TestListPaginationPartitionsRecords(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	const n, size = 23, 5
	for i := 0; i < n; i++ {
		require.NoError(t, s.Put(ctx, draft(fmt.Sprintf("t%02d", i), time.Duration(i)*time.Minute)))
	}

	seen := map[string]bool{}
	sum := 0
	pages := (n + size - 1) / size
	for p := 1; p <= pages; p++ {
		page, err := s.List(ctx, Filter{}, p, size)
		require.NoError(t, err)
		assert.EqualValues(t, n, page.Total)
		sum += len(page.Items)
		for _, d := range page.Items {
			assert.False(t, seen[d.ID], "%s on two pages", d.ID)
			seen[d.ID] = true
		}
	}
	assert.Equal(t, n, sum)

	first, err := s.List(ctx, Filter{}, 1, size)
	require.NoError(t, err)
	assert.Equal(t, "t22", first.Items[0].ID, "newest first")

	beyond, err := s.List(ctx, Filter{}, pages+1, size)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
}

func TestListHugePageIsEmpty(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(ctx, draft(fmt.Sprintf("t%d", i), time.Duration(i)*time.Minute)))
	}

	for _, f := range []Filter{{}, {Search: "draft"}} {
		page, err := s.List(ctx, f, 92233720368547760, 100)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.EqualValues(t, 3, page.Total)
	}
}

func TestListByStatusAndSearch(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		d := draft(fmt.Sprintf("t%d", i), time.Duration(i)*time.Minute)
		if i%2 == 0 {
			d.Text = "Kubernetes upgrade " + d.ID
		}
		if i == 5 {
			d.ArticleTitle = "كوبرنيتس kubernetes guide"
		}
		require.NoError(t, s.Put(ctx, d))
	}
	_, err := s.UpdateStatus(ctx, "t4", models.StatusApproved, Update{})
	require.NoError(t, err)

	page, err := s.List(ctx, Filter{Search: "KUBERNETES"}, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total, "total counts matches after the search filter")
	require.Len(t, page.Items, 2)
	assert.Equal(t, "t5", page.Items[0].ID)
	assert.Equal(t, "t4", page.Items[1].ID)

	page, err = s.List(ctx, Filter{Status: models.StatusPending, Search: "kubernetes"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	page, err = s.List(ctx, Filter{Status: models.StatusApproved}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, "t4", page.Items[0].ID)
}

func TestSoftDeletedRecordsAreHidden(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	gone := draft("t1", 0)
	deletedAt := base
	gone.DeletedAt = &deletedAt
	require.NoError(t, s.Put(ctx, gone))
	require.NoError(t, s.Put(ctx, draft("t2", 0)))

	page, err := s.List(ctx, Filter{}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, "t2", page.Items[0].ID)

	// still retrievable for audit
	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Deleted())
}

func TestDue(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Put(ctx, draft(id, 0)))
	}
	past, future := base.Add(-time.Hour), base.Add(time.Hour)
	_, err := s.UpdateStatus(ctx, "a", models.StatusApproved, Update{})
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "b", models.StatusScheduled, Update{ScheduledAt: &past})
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "c", models.StatusScheduled, Update{ScheduledAt: &future})
	require.NoError(t, err)

	due, err := s.Due(ctx, base.UnixMilli(), 10)
	require.NoError(t, err)
	var ids []string
	for _, d := range due {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	due, err = s.Due(ctx, base.UnixMilli(), 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
