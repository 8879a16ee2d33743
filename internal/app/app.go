// Package app builds the long-lived components shared by the server and the
// publish-due sweep.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/bilgisen/tweetdesk/internal/ai"
	"github.com/bilgisen/tweetdesk/internal/articles"
	"github.com/bilgisen/tweetdesk/internal/cache"
	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/secrets"
	"github.com/bilgisen/tweetdesk/internal/storage"
	"github.com/bilgisen/tweetdesk/internal/tweets"
	"github.com/bilgisen/tweetdesk/internal/twitter"
	"github.com/bilgisen/tweetdesk/internal/uploads"
)

type App struct {
	Redis   *cache.RedisClient
	Tweets  *tweets.Service
	Uploads *uploads.Presigner
}

// New connects to Redis and wires the tweet lifecycle. Credentials are not
// fetched until first use.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	store, err := newSecretStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	generator := ai.NewGenerator(
		cache.NewTTL(cfg.CredentialTTL, ai.GeminiLoader(store, cfg.AISecretID, cfg.AIModel, cfg.AIBaseURL, cfg.AITimeout)),
		ai.GeneratorOptions{
			Language:    cfg.TweetLanguage,
			Temperature: cfg.AITemperature,
			MaxTokens:   cfg.AIMaxTokens,
			Timeout:     cfg.AITimeout,
		},
	)

	publisher := twitter.NewPublisher(
		cache.NewTTL(cfg.CredentialTTL, twitter.ClientLoader(store, cfg.TwitterSecretID, cfg.TwitterAPIURL, cfg.PublishTimeout)),
		cfg.PublishTimeout,
	)

	var articleSource tweets.ArticleSource
	if cfg.CMSAPIURL != "" {
		articleSource = articles.NewFetcher(cfg.CMSAPIURL, cfg.HTTPTimeout)
	} else {
		log.Warn().Msg("CMS_API_URL not set, generate requests must include the article text")
	}

	svc := tweets.NewService(
		storage.NewStorage(redisClient.Client(), redisClient.Prefix()),
		generator,
		articleSource,
		publisher,
		redisClient,
		tweets.Options{Language: cfg.TweetLanguage, MarkerTTL: cfg.PublishMarkerTTL},
	)

	a := &App{Redis: redisClient, Tweets: svc}
	if cfg.UploadsEnabled() {
		a.Uploads, err = uploads.NewPresigner(ctx, cfg)
		if err != nil {
			redisClient.Close()
			return nil, err
		}
	} else {
		log.Warn().Msg("R2 is not configured, presigned uploads are disabled")
	}

	log.Info().
		Str("secrets_backend", cfg.SecretsBackend).
		Str("language", cfg.TweetLanguage).
		Bool("uploads", a.Uploads != nil).
		Msg("Application components initialized")
	return a, nil
}

func newSecretStore(ctx context.Context, cfg *config.Config) (secrets.Store, error) {
	switch cfg.SecretsBackend {
	case "aws":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return secrets.NewAWSStore(awsCfg), nil
	default:
		return secrets.NewEnvStore(), nil
	}
}

// Close releases the Redis pool
func (a *App) Close() error {
	return a.Redis.Close()
}
