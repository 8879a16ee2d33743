// Package articles reads article content from the CMS content API.
package articles

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/go-resty/resty/v2"
)

type Fetcher struct {
	client  *resty.Client
	baseURL string
	parser  *Parser
}

// NewFetcher talks to the CMS at baseURL. Transport errors and 5xx responses are retried.
func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			}),
		baseURL: strings.TrimRight(baseURL, "/"),
		parser:  NewParser(),
	}
}

// Fetch loads an article by id and returns it with markup stripped
func (f *Fetcher) Fetch(ctx context.Context, id string) (*models.Article, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("articles.fetch", "article id is required")
	}

	var article models.Article
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&article).
		Get(f.baseURL + "/articles/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %s: %w", id, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, apperr.NotFound("articles.fetch", "article %s not found", id)
	case resp.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code %d for article %s", resp.StatusCode(), id)
	}

	if article.ID == "" {
		article.ID = id
	}
	normalized := f.parser.Normalize(article)
	if err := f.parser.Validate(normalized); err != nil {
		return nil, err
	}

	logger.Get().Debug().
		Str("article_id", id).
		Int("content_length", len(normalized.Content)).
		Int("tags", len(normalized.Tags)).
		Msg("Fetched article")
	return &normalized, nil
}
