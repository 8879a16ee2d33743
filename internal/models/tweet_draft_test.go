package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTone(t *testing.T) {
	cases := map[string]Tone{
		"professional": ToneProfessional,
		"engaging":     ToneEngaging,
		"educational":  ToneEducational,
		"friendly":     ToneFriendly,
		"question":     ToneEngaging,
		"fact":         ToneEducational,
		"informative":  ToneEducational,
		"casual":       ToneFriendly,
		" Fact ":       ToneEducational,
		"QUESTION":     ToneEngaging,
		"sarcastic":    ToneProfessional,
		"":             ToneProfessional,
		"حماسي":        ToneProfessional,
	}
	for in, want := range cases {
		got := NormalizeTone(in)
		assert.Equal(t, want, got, "tone %q", in)
		assert.True(t, got.Valid())
	}
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" Approved ")
	require.True(t, ok)
	assert.Equal(t, StatusApproved, st)

	_, ok = ParseStatus("rejected")
	assert.False(t, ok)
}

func TestTweetDraftJSONFieldNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := TweetDraft{
		ID:           "t1",
		Text:         "hello",
		Tone:         ToneFriendly,
		Hashtags:     []string{"cloud"},
		Sequence:     1,
		TotalInBatch: 4,
		Status:       StatusScheduled,
		ScheduledAt:  &now,
		Metrics:      Metrics{Likes: 3},
		CreatedAt:    now,
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "scheduled", out["status"])
	assert.Equal(t, "2026-03-01T09:00:00Z", out["scheduledTime"])
	assert.EqualValues(t, 3, out["likes"])
	assert.EqualValues(t, 4, out["totalInBatch"])
	assert.NotContains(t, out, "postedTime")
	assert.NotContains(t, out, "errorMessage")
}

func TestTweetDraftValidate(t *testing.T) {
	now := time.Now()
	valid := func() TweetDraft {
		return TweetDraft{
			ID: "t1", Text: "hello", Tone: ToneProfessional,
			Sequence: 2, TotalInBatch: 4, Status: StatusPending, CreatedAt: now,
		}
	}

	d := valid()
	assert.Empty(t, d.Validate())

	d = valid()
	d.Text = strings.Repeat("ع", MaxTweetLength)
	assert.Empty(t, d.Validate(), "280 Arabic characters fit")

	d.Text += "ع"
	assert.NotEmpty(t, d.Validate())

	d = valid()
	d.Sequence = 5
	assert.NotEmpty(t, d.Validate())

	d = valid()
	d.Status = StatusPosted
	d.ExternalID = "99"
	assert.NotEmpty(t, d.Validate(), "posted without postedTime")
	d.PostedAt = &now
	d.ScheduledAt = &now
	assert.Empty(t, d.Validate())

	d = valid()
	d.Status = StatusFailed
	assert.NotEmpty(t, d.Validate(), "failed without errorMessage")

	d = valid()
	d.ErrorMessage = "boom"
	assert.NotEmpty(t, d.Validate(), "errorMessage on pending draft")
}

func TestTweetDraftMatches(t *testing.T) {
	d := TweetDraft{Text: "Cloud costs are falling", ArticleTitle: "السحابة في 2026"}
	assert.True(t, d.Matches("CLOUD"))
	assert.True(t, d.Matches("السحابة"))
	assert.True(t, d.Matches(""))
	assert.False(t, d.Matches("kubernetes"))
}

func TestTweetDraftOrderTime(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := TweetDraft{CreatedAt: created}
	assert.Equal(t, created, d.OrderTime())

	at := created.Add(48 * time.Hour)
	d.ScheduledAt = &at
	assert.Equal(t, at, d.OrderTime())
}
