package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/tweetdesk/internal/cache"
	"github.com/bilgisen/tweetdesk/internal/secrets"
	"github.com/go-resty/resty/v2"
)

// GenerationRequest is one call to the text generation service
type GenerationRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// TextGenerator returns the raw model output for a request
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type GeminiClient struct {
	client  *resty.Client
	apiKey  string
	model   string
	baseURL string
}

type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	GenerationConfig  *geminiGenerateConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		client:  resty.New().SetTimeout(timeout),
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Generate calls generateContent and returns the concatenated text parts of the first candidate
func (g *GeminiClient) Generate(ctx context.Context, in GenerationRequest) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: in.Prompt}},
		}},
		GenerationConfig: &geminiGenerateConfig{
			Temperature:     in.Temperature,
			MaxOutputTokens: in.MaxTokens,
		},
	}
	if in.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: in.System}}}
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("API error: %s", httpResp.Status())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content in response")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// GeminiLoader builds a GeminiClient from the API key held in the secret store.
// It is meant to back a cache.TTL so the key is fetched once per window.
func GeminiLoader(store secrets.Store, secretID, model, baseURL string, timeout time.Duration) cache.LoadFunc[TextGenerator] {
	return func(ctx context.Context) (TextGenerator, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		b, err := store.Get(ctx, secretID)
		if err != nil {
			return nil, err
		}
		key := b.Lookup("api_key", "gemini_api_key", "value")
		if key == "" {
			return nil, fmt.Errorf("secret %s has no api_key", secretID)
		}
		return NewGeminiClient(key, model, baseURL, timeout), nil
	}
}
