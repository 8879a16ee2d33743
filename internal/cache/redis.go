package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisClient owns the process-wide Redis connection pool and the publish markers
type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: cfg.RedisPrefix,
	}, nil
}

// Wrap uses an existing client, e.g. one pointed at miniredis
func Wrap(client *redis.Client, prefix string) *RedisClient {
	return &RedisClient{client: client, prefix: prefix}
}

// Client exposes the underlying connection for stores sharing the pool
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Prefix is prepended to every key written through this client
func (r *RedisClient) Prefix() string {
	return r.prefix
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) markerKey(id string) string {
	return r.prefix + "published:" + id
}

// PublishedID returns the external post id recorded for a draft, if the platform
// call already succeeded once.
func (r *RedisClient) PublishedID(ctx context.Context, draftID string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.markerKey(draftID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get marker: %w", err)
	}
	return val, true, nil
}

// MarkPublished records the external post id for a draft
func (r *RedisClient) MarkPublished(ctx context.Context, draftID, externalID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.markerKey(draftID), externalID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set marker: %w", err)
	}
	return nil
}

func (r *RedisClient) leaseKey(id string) string {
	return r.prefix + "publishing:" + id
}

// releaseScript deletes a lease only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ClaimPublish takes the per-draft publish lease. It reports false when another
// worker holds it. The lease expires after ttl if never released.
func (r *RedisClient) ClaimPublish(ctx context.Context, draftID, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.leaseKey(draftID), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim lease: %w", err)
	}
	return ok, nil
}

// ReleasePublish drops the lease if token still owns it
func (r *RedisClient) ReleasePublish(ctx context.Context, draftID, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.leaseKey(draftID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release lease: %w", err)
	}
	return nil
}

// ClearPublished drops the marker, used once a draft is removed
func (r *RedisClient) ClearPublished(ctx context.Context, draftID string) error {
	return r.client.Del(ctx, r.markerKey(draftID)).Err()
}
