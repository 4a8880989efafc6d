package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"critterlens/internal/logging"
)

// FactGenerator produces a one-line nature note about an identified species,
// appended to successful identification replies. Purely decorative: with no
// API key, or on any error, it yields an empty string and the reply goes out
// without it.
type FactGenerator struct {
	apiKey string
	log    *logging.Logger
}

func NewFactGenerator(apiKey string, log *logging.Logger) *FactGenerator {
	return &FactGenerator{apiKey: apiKey, log: log}
}

func (fg *FactGenerator) SpeciesFact(ctx context.Context, species string) string {
	if fg.apiKey == "" {
		return ""
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  fg.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fg.log.Warnf("ai: genai client: %v", err)
		return ""
	}

	prompt := fmt.Sprintf(
		"In one short sentence (under 120 characters), share a fun fact about the creature '%s'. "+
			"Plain text, no emoji, no hashtags. If you don't recognize it, reply with an empty string.",
		species,
	)

	resp, err := client.Models.GenerateContent(ctx, "gemini-2.0-flash-exp", []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		fg.log.Warnf("ai: generate content: %v", err)
		return ""
	}

	return strings.TrimSpace(resp.Text())
}
