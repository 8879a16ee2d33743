package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
)

// BatchSize is the number of drafts produced per article
const BatchSize = 4

// Parse failure reasons carried by GenerationError
const (
	ReasonUpstream     = "upstream_error"
	ReasonNoArrayFound = "no_array_found"
	ReasonTooFewDrafts = "too_few_drafts"
)

// Candidate is a validated draft that has not been persisted yet
type Candidate struct {
	Text     string
	Tone     models.Tone
	Hashtags []string
}

type rawCandidate struct {
	Text     json.RawMessage `json:"text"`
	Tone     json.RawMessage `json:"tone"`
	Hashtags json.RawMessage `json:"hashtags"`
}

// ParseCandidates extracts the first JSON array from raw model output and turns
// its entries into exactly BatchSize candidates. Entries that are not objects
// with a non-empty text are skipped; extra entries are ignored.
func ParseCandidates(raw string) ([]Candidate, error) {
	entries, ok := extractArray(raw)
	if !ok {
		return nil, apperr.Generation("ai.parse", ReasonNoArrayFound, errors.New("no JSON array in model output"))
	}

	out := make([]Candidate, 0, BatchSize)
	for _, entry := range entries {
		c, ok := parseCandidate(entry)
		if !ok {
			continue
		}
		out = append(out, c)
		if len(out) == BatchSize {
			return out, nil
		}
	}
	return nil, apperr.Generation("ai.parse", ReasonTooFewDrafts,
		fmt.Errorf("model returned %d usable drafts, want %d", len(out), BatchSize))
}

// extractArray returns the elements of the first well-formed JSON array in s.
// The model may wrap the array in prose or markdown fences.
func extractArray(s string) ([]json.RawMessage, bool) {
	for i := strings.IndexByte(s, '['); i >= 0; {
		var arr []json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&arr); err == nil {
			return arr, true
		}
		next := strings.IndexByte(s[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

func parseCandidate(entry json.RawMessage) (Candidate, bool) {
	var rc rawCandidate
	if err := json.Unmarshal(entry, &rc); err != nil {
		return Candidate{}, false
	}

	var text string
	if err := json.Unmarshal(rc.Text, &text); err != nil {
		return Candidate{}, false
	}
	text = cleanText(text)
	if text == "" {
		return Candidate{}, false
	}

	var tone string
	_ = json.Unmarshal(rc.Tone, &tone)

	return Candidate{
		Text:     truncate(text, models.MaxTweetLength),
		Tone:     models.NormalizeTone(tone),
		Hashtags: normalizeHashtags(rc.Hashtags),
	}, true
}

// normalizeHashtags takes the first MaxHashtags entries of the array and keeps
// the string ones, without the leading '#'. Anything that is not an array yields
// an empty list.
func normalizeHashtags(raw json.RawMessage) []string {
	tags := []string{}
	var in []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &in) != nil {
		return tags
	}
	if len(in) > models.MaxHashtags {
		in = in[:models.MaxHashtags]
	}
	for _, el := range in {
		var t string
		if json.Unmarshal(el, &t) != nil {
			continue
		}
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// cleanText drops control characters and collapses runs of spaces, keeping line breaks
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
