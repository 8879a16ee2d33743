package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fourDrafts = `[
  {"text": "Cloud spending rose 20% this year 📈", "tone": "professional", "hashtags": ["cloud", "#finance"]},
  {"text": "Is your team ready for the cloud? 🤔", "tone": "question", "hashtags": ["cloud"]},
  {"text": "Did you know? 60% of workloads now run in the cloud ☁️", "tone": "fact"},
  {"text": "What's your favourite cloud tool? Tell us 👇", "tone": "casual", "hashtags": ["a","b","c","d","e","f"]}
]`

func TestParseCandidatesWrappedInProse(t *testing.T) {
	raw := "Sure! Here are the posts [as requested]:\n```json\n" + fourDrafts + "\n```\nLet me know."

	got, err := ParseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, BatchSize)

	assert.Equal(t, models.ToneProfessional, got[0].Tone)
	assert.Equal(t, []string{"cloud", "finance"}, got[0].Hashtags)
	assert.Equal(t, models.ToneEngaging, got[1].Tone)
	assert.Equal(t, models.ToneEducational, got[2].Tone)
	assert.Equal(t, []string{}, got[2].Hashtags, "missing hashtags default to empty")
	assert.Equal(t, models.ToneFriendly, got[3].Tone)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got[3].Hashtags)
}

func TestParseCandidatesInvariants(t *testing.T) {
	long := strings.Repeat("خبر ", 120)
	raw := `[{"text":"` + long + `","tone":"sarcastic","hashtags":"not-an-array"},
	         {"text":"two","tone":42},
	         {"text":"three","tone":"informative"},
	         {"text":"four","tone":"FRIENDLY","hashtags":["x","y"]}]`

	got, err := ParseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, BatchSize)

	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c.Text)), models.MaxTweetLength)
		assert.True(t, c.Tone.Valid())
		assert.LessOrEqual(t, len(c.Hashtags), models.MaxHashtags)
	}
	assert.Len(t, []rune(got[0].Text), models.MaxTweetLength-1, "cut at 280 runes, trailing space trimmed")
	assert.Equal(t, models.ToneProfessional, got[0].Tone)
	assert.Empty(t, got[0].Hashtags)
	assert.Equal(t, models.ToneProfessional, got[1].Tone)
	assert.Equal(t, models.ToneEducational, got[2].Tone)
	assert.Equal(t, models.ToneFriendly, got[3].Tone)
}

func TestParseCandidatesSkipsBadEntriesAndIgnoresExtras(t *testing.T) {
	raw := `[{"text":""}, "just a string", {"tone":"fact"},
	         {"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"}]`

	got, err := ParseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, BatchSize)
	assert.Equal(t, "1", got[0].Text)
	assert.Equal(t, "4", got[3].Text)
}

func TestParseCandidatesNoArray(t *testing.T) {
	for _, raw := range []string{
		"I cannot help with that.",
		`{"text":"an object, not an array"}`,
		"[unterminated",
		"",
	} {
		_, err := ParseCandidates(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, apperr.ErrGeneration))
		assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindGeneration, Reason: ReasonNoArrayFound}), raw)
	}
}

func TestParseCandidatesTooFew(t *testing.T) {
	_, err := ParseCandidates(`[{"text":"one"},{"text":"two"}]`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindGeneration, Reason: ReasonTooFewDrafts}))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b\nc", cleanText("  a \t  b\r\n c  "))
}

func TestNormalizeHashtags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"first four entries", `["a","#b","c","d","e"]`, []string{"a", "b", "c", "d"}},
		{"blank and non-string entries count toward the cap", `["", "#x", 5, "y", "z"]`, []string{"x", "y"}},
		{"not an array", `"cloud"`, []string{}},
		{"absent", ``, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHashtags([]byte(tt.raw)))
		})
	}
}

func TestBuildTweetPrompt(t *testing.T) {
	p := BuildTweetPrompt("Title \"quoted\"", strings.Repeat("x", 3000), []string{"cloud", " ", "ai"}, "en")
	assert.Contains(t, p, "in English")
	assert.Contains(t, p, `Title \"quoted\"`)
	assert.Contains(t, p, "Tags: cloud, ai")
	assert.NotContains(t, p, strings.Repeat("x", 2001))

	p = BuildTweetPrompt("عنوان", "محتوى", nil, "xx")
	assert.Contains(t, p, "in Arabic")
}
