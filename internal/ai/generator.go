package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/cache"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/rs/zerolog"
)

// Input is the article content drafts are generated from
type Input struct {
	Title    string
	Content  string
	Tags     []string
	Language string
}

// GeneratorOptions tune the generation call
type GeneratorOptions struct {
	Language    string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Generator turns an article into four draft candidates with one model call
type Generator struct {
	clients *cache.TTL[TextGenerator]
	opts    GeneratorOptions
	log     zerolog.Logger
}

// NewGenerator uses clients to obtain the (cached) text generation client
func NewGenerator(clients *cache.TTL[TextGenerator], opts GeneratorOptions) *Generator {
	if opts.Language == "" {
		opts.Language = "ar"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Generator{clients: clients, opts: opts, log: logger.Component("generator")}
}

// Generate returns exactly BatchSize candidates or a GenerationError.
// A failure to obtain the client is reported as a ConfigurationError.
func (g *Generator) Generate(ctx context.Context, in Input) ([]Candidate, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("ai.generate", "title or content is required")
	}
	lang := in.Language
	if lang == "" {
		lang = g.opts.Language
	}

	client, err := g.clients.Get(ctx)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindConfiguration {
			return nil, err
		}
		return nil, apperr.Configuration("ai.client", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := client.Generate(ctx, GenerationRequest{
		System:      SystemInstruction,
		Prompt:      BuildTweetPrompt(in.Title, in.Content, in.Tags, lang),
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		g.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Text generation failed")
		return nil, apperr.Generation("ai.generate", ReasonUpstream, err)
	}

	candidates, err := ParseCandidates(raw)
	if err != nil {
		g.log.Warn().Err(err).Int("response_length", len(raw)).Msg("Unusable model output")
		return nil, err
	}

	g.log.Debug().
		Str("language", lang).
		Dur("elapsed", time.Since(start)).
		Msg("Generated draft candidates")
	return candidates, nil
}
