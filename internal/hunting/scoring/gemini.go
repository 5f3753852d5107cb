package scoring

import (
	"context"
	"fmt"

	"leadhunt_backend/platform/config"

	"google.golang.org/genai"
)

// GeminiClient implements CompletionClient against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini completion client, or nil when no API key
// is configured (scoring then degrades to reject-all).
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if !cfg.IsScoringEnabled() {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetGeminiAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.GetGeminiModel(),
	}, nil
}

// Complete sends the prompt and returns the raw model text.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.2)
	maxTokens := int32(512)

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
