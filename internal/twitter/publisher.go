// Package twitter posts approved drafts to X through the v2 API.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/cache"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/bilgisen/tweetdesk/internal/secrets"
	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Credentials are the four OAuth 1.0a values needed to post as the site account
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// CredentialsFromBundle reads and sanitizes the credential fields of a secret.
// It fails when any of the four is missing or blank.
func CredentialsFromBundle(b secrets.Bundle) (Credentials, error) {
	c := Credentials{
		APIKey:            b.Lookup("api_key", "consumer_key", "twitter_api_key"),
		APISecret:         b.Lookup("api_secret", "api_key_secret", "consumer_secret", "twitter_api_secret"),
		AccessToken:       b.Lookup("access_token", "twitter_access_token"),
		AccessTokenSecret: b.Lookup("access_token_secret", "access_secret", "twitter_access_token_secret"),
	}
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.APISecret == "" {
		missing = append(missing, "api_secret")
	}
	if c.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if c.AccessTokenSecret == "" {
		missing = append(missing, "access_token_secret")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing credential fields: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// Result identifies a post on the platform
type Result struct {
	ExternalID  string `json:"externalId"`
	ExternalURL string `json:"externalUrl"`
}

// Poster sends one post with a signed client
type Poster interface {
	Post(ctx context.Context, text string) (Result, error)
}

// Client is a Poster bound to one set of credentials
type Client struct {
	http    *resty.Client
	baseURL string
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	default:
		return e.Title
	}
}

// NewClient signs every request with OAuth 1.0a user context
func NewClient(creds Credentials, baseURL string, timeout time.Duration) *Client {
	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	httpClient := cfg.Client(oauth1.NoContext, token)

	return &Client{
		http:    resty.NewWithClient(httpClient).SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Post creates a tweet and returns its id and URL
func (c *Client) Post(ctx context.Context, text string) (Result, error) {
	var out createTweetResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createTweetRequest{Text: text}).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.baseURL + "/2/tweets")
	if err != nil {
		return Result{}, fmt.Errorf("post tweet: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.message()
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		switch resp.StatusCode() {
		case http.StatusTooManyRequests:
			return Result{}, fmt.Errorf("rate limited (reset %s): %s", resp.Header().Get("x-rate-limit-reset"), msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return Result{}, fmt.Errorf("rejected by X (%d): %s", resp.StatusCode(), msg)
		default:
			return Result{}, fmt.Errorf("X API error %d: %s", resp.StatusCode(), msg)
		}
	}

	if out.Data == nil || out.Data.ID == "" {
		return Result{}, errors.New("X API response has no tweet id")
	}
	return Result{ExternalID: out.Data.ID, ExternalURL: StatusURL(out.Data.ID)}, nil
}

// StatusURL is the public link of a post
func StatusURL(id string) string {
	return "https://x.com/i/web/status/" + id
}

// ClientLoader fetches credentials from the secret store and builds a signed client.
// It is meant to back a cache.TTL.
func ClientLoader(store secrets.Store, secretID, baseURL string, timeout time.Duration) cache.LoadFunc[Poster] {
	return func(ctx context.Context) (Poster, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		b, err := store.Get(ctx, secretID)
		if err != nil {
			return nil, err
		}
		creds, err := CredentialsFromBundle(b)
		if err != nil {
			return nil, apperr.Configuration("twitter.credentials", err)
		}
		return NewClient(creds, baseURL, timeout), nil
	}
}

// Publisher posts draft text. It keeps no state besides the cached client.
type Publisher struct {
	clients *cache.TTL[Poster]
	timeout time.Duration
	log     zerolog.Logger
}

func NewPublisher(clients *cache.TTL[Poster], timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Publisher{clients: clients, timeout: timeout, log: logger.Component("publisher")}
}

// Publish posts text and returns the platform ids.
// Errors are ValidationError, ConfigurationError or PublishError.
func (p *Publisher) Publish(ctx context.Context, text string) (Result, error) {
	n := len([]rune(text))
	if strings.TrimSpace(text) == "" || n > models.MaxTweetLength {
		return Result{}, apperr.Validation("twitter.publish", "text must be 1-%d characters, got %d", models.MaxTweetLength, n)
	}

	client, err := p.clients.Get(ctx)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindConfiguration {
			return Result{}, err
		}
		return Result{}, apperr.Configuration("twitter.credentials", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	res, err := client.Post(ctx, text)
	if err != nil {
		p.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Post to X failed")
		return Result{}, apperr.Publish("twitter.publish", err)
	}
	p.log.Info().
		Str("external_id", res.ExternalID).
		Dur("elapsed", time.Since(start)).
		Msg("Posted to X")
	return res, nil
}
