package articles

import (
	"html"
	"regexp"
	"strings"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/models"
	"github.com/go-playground/validator/v10"
)

// Parser cleans CMS article payloads before they reach the prompt
type Parser struct {
	htmlTagRegex *regexp.Regexp
	validate     *validator.Validate
}

func NewParser() *Parser {
	return &Parser{
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
		validate:     validator.New(),
	}
}

// CleanHTML removes HTML tags and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Normalize strips markup and drops blank or duplicate tags
func (p *Parser) Normalize(a models.Article) models.Article {
	out := models.Article{
		ID:      strings.TrimSpace(a.ID),
		Title:   p.CleanHTML(a.Title),
		Content: p.CleanHTML(a.Content),
		Tags:    []string{},
	}
	seen := make(map[string]bool, len(a.Tags))
	for _, t := range a.Tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Tags = append(out.Tags, t)
	}
	return out
}

// Validate checks the fields generation needs
func (p *Parser) Validate(a models.Article) error {
	if err := p.validate.Struct(a); err != nil {
		return apperr.Validation("articles.validate", "article %s: missing title", a.ID)
	}
	return nil
}
