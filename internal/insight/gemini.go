package insight

import (
	"context"
	"fmt"
	"strings"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"
)

// Gemini calls a Gemini model through the Vertex AI API.
//
// API KEY ACCESS:
// Vertex AI accepts an API key (express mode) on the publisher model path
// "publishers/google/models/{model}", so no project, location or service
// account is needed. The key travels as the ?key= query parameter set by
// option.WithAPIKey.
type Gemini struct {
	svc   *aiplatform.Service
	model string
}

var _ Provider = (*Gemini)(nil)

// NewGemini builds a client for model ("gemini-2.5-flash"). Extra options
// are passed to the API client, which lets tests point it at a local server.
func NewGemini(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Gemini, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("insight: creating gemini client: %w", err)
	}
	return &Gemini{svc: svc, model: model}, nil
}

// Generate returns the concatenated text parts of the first candidate, or
// "" when the model produced none. Thought parts are skipped.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	req := &aiplatform.GoogleCloudAiplatformV1GenerateContentRequest{
		Contents: []*aiplatform.GoogleCloudAiplatformV1Content{{
			Role:  "user",
			Parts: []*aiplatform.GoogleCloudAiplatformV1Part{{Text: prompt}},
		}},
	}

	resp, err := g.svc.Publishers.Models.
		GenerateContent("publishers/google/models/"+g.model, req).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insight: gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
