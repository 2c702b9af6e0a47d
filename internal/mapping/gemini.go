package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiService calls Gemini to compute column mappings and asset
// classifications. It expects the model to return strict JSON objects.
type GeminiService struct {
	client *genai.Client
	model  string
}

// NewGeminiService creates the service. An empty apiKey falls back to the
// environment (GOOGLE_API_KEY or application default credentials).
func NewGeminiService(ctx context.Context, model, apiKey string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("mapping: create genai client: %w", err)
	}
	return &GeminiService{client: client, model: model}, nil
}

// MapColumns implements AIService.
func (s *GeminiService) MapColumns(ctx context.Context, req Request) (map[string]any, error) {
	prompt := buildMappingPrompt(req.Columns, req.Samples, req.Schema)
	return s.generateObject(ctx, prompt)
}

// generateObject sends a prompt and parses the response as a JSON object.
func (s *GeminiService) generateObject(ctx context.Context, prompt string) (map[string]any, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return parsed, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object if junk still surrounds it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
