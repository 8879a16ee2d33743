package ai

import (
	"fmt"
	"strings"
)

// maxPromptContent bounds how much article body goes into the prompt
const maxPromptContent = 2000

var languageNames = map[string]string{
	"ar": "Arabic",
	"en": "English",
}

// SystemInstruction frames the model as the site's social media editor
const SystemInstruction = `You are the social media editor of a bilingual Arabic/English news site.
You write short, accurate posts for X (Twitter) and you always answer with a JSON array only.`

// PromptTemplates contains the prompt templates used for draft generation
var PromptTemplates = struct {
	TweetBatch string
}{
	TweetBatch: `Write exactly 4 different posts for X about the article below, in %s.

Each post must use a different style:
1. professional: a clear, authoritative summary of the key point
2. engaging: opens with or asks a question to the reader
3. educational: shares a concrete fact or number from the article
4. friendly: conversational, invites readers to discuss

Rules:
- at most 250 characters per post, including emoji
- use 1-2 fitting emoji in each post
- no generic filler such as "check this out", "read more" or "don't miss"
- up to 4 relevant hashtags per post, without the # sign

Respond with a JSON array of 4 objects with these fields:
- text (string)
- tone (one of: professional, engaging, educational, friendly)
- hashtags (array of strings)

Article:
Title: %s

Tags: %s

Content: %s`,
}

// BuildTweetPrompt creates the prompt for one article
func BuildTweetPrompt(title, content string, tags []string, language string) string {
	lang, ok := languageNames[strings.ToLower(language)]
	if !ok {
		lang = languageNames["ar"]
	}

	content = escapeForPrompt(content)
	if r := []rune(content); len(r) > maxPromptContent {
		content = string(r[:maxPromptContent]) + "..."
	}

	cleanTags := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = escapeForPrompt(t); t != "" {
			cleanTags = append(cleanTags, t)
		}
	}

	return fmt.Sprintf(PromptTemplates.TweetBatch, lang, escapeForPrompt(title), strings.Join(cleanTags, ", "), content)
}

// escapeForPrompt escapes special characters for use in prompts
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
