package models

import (
	"strings"
	"time"
)

// MaxTweetLength is the hard cap on draft text, counted in characters (runes)
const MaxTweetLength = 280

// MaxHashtags is the number of hashtags kept per draft
const MaxHashtags = 4

// Tone is the editorial style of a draft
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneEngaging     Tone = "engaging"
	ToneEducational  Tone = "educational"
	ToneFriendly     Tone = "friendly"
)

// toneAliases maps labels the model tends to return onto the fixed tone set
var toneAliases = map[string]Tone{
	"professional": ToneProfessional,
	"engaging":     ToneEngaging,
	"educational":  ToneEducational,
	"friendly":     ToneFriendly,
	"question":     ToneEngaging,
	"fact":         ToneEducational,
	"informative":  ToneEducational,
	"casual":       ToneFriendly,
}

// NormalizeTone maps any string onto a valid Tone. Unknown values become professional.
func NormalizeTone(s string) Tone {
	if t, ok := toneAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return ToneProfessional
}

// Valid reports whether t is one of the four tones
func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneEngaging, ToneEducational, ToneFriendly:
		return true
	}
	return false
}

// Status drives the moderation and publish lifecycle of a draft
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusApproved  Status = "approved"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order
var Statuses = []Status{StatusPending, StatusScheduled, StatusApproved, StatusPosted, StatusFailed}

// ParseStatus returns the Status named by s
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Publishable reports whether a draft in this status has been cleared for publishing
func (s Status) Publishable() bool {
	return s == StatusApproved || s == StatusScheduled
}

// TweetDraft is one generated post, from moderation through publishing
type TweetDraft struct {
	ID           string     `json:"id"`
	ArticleID    string     `json:"articleId,omitempty"`
	ArticleTitle string     `json:"articleTitle,omitempty"`
	Text         string     `json:"text"`
	Tone         Tone       `json:"tone"`
	Hashtags     []string   `json:"hashtags"`
	Language     string     `json:"language,omitempty"`
	Sequence     int        `json:"sequence"`
	TotalInBatch int        `json:"totalInBatch"`
	Status       Status     `json:"status"`
	ScheduledAt  *time.Time `json:"scheduledTime,omitempty"`
	PostedAt     *time.Time `json:"postedTime,omitempty"`
	ExternalID   string     `json:"externalId,omitempty"`
	ExternalURL  string     `json:"externalUrl,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Metrics
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Metrics are the engagement counters written by the metrics collector
type Metrics struct {
	Likes       int64 `json:"likes"`
	Retweets    int64 `json:"retweets"`
	Replies     int64 `json:"replies"`
	Impressions int64 `json:"impressions"`
}

// Deleted reports whether the draft has been soft-deleted
func (d *TweetDraft) Deleted() bool {
	return d.DeletedAt != nil
}

// OrderTime is the time a draft sorts by in listings: scheduled time when known, creation time otherwise.
func (d *TweetDraft) OrderTime() time.Time {
	if d.ScheduledAt != nil {
		return *d.ScheduledAt
	}
	return d.CreatedAt
}

// Matches reports whether text or the article title contain the query, ignoring case
func (d *TweetDraft) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Text), q) ||
		strings.Contains(strings.ToLower(d.ArticleTitle), q)
}

// Validate checks the invariants every stored draft must satisfy.
// It returns a description of the first violation, or "" when the draft is consistent.
func (d *TweetDraft) Validate() string {
	switch {
	case d.ID == "":
		return "id is required"
	case d.Text == "":
		return "text is required"
	case len([]rune(d.Text)) > MaxTweetLength:
		return "text exceeds 280 characters"
	case !d.Tone.Valid():
		return "unknown tone " + string(d.Tone)
	case len(d.Hashtags) > MaxHashtags:
		return "too many hashtags"
	case d.Sequence < 1 || d.Sequence > d.TotalInBatch:
		return "sequence out of batch range"
	}
	if _, ok := ParseStatus(string(d.Status)); !ok {
		return "unknown status " + string(d.Status)
	}
	switch d.Status {
	case StatusPosted:
		if d.PostedAt == nil || d.ExternalID == "" || d.ScheduledAt == nil {
			return "posted draft needs postedTime, externalId and scheduledTime"
		}
	case StatusFailed:
		if d.ErrorMessage == "" {
			return "failed draft needs errorMessage"
		}
	default:
		if d.ErrorMessage != "" {
			return "errorMessage is only kept on failed drafts"
		}
	}
	return ""
}
