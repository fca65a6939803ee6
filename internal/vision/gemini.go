// Package vision describes uploaded images with a multimodal model.
package vision

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"go.uber.org/zap"
)

// GeminiDescriber answers a prompt about an image with Gemini.
type GeminiDescriber struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiDescriber(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiDescriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key missing")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiDescriber{client: client, model: model, logger: logger}, nil
}

func (g *GeminiDescriber) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	contents, err := imageContents(image, prompt)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini describe: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini describe: empty description")
	}
	g.logger.Debug("image described", zap.Int("bytes", len(image)), zap.Int("chars", len(text)))
	return text, nil
}

// imageContents builds the single user turn carrying the image and prompt.
func imageContents(image []byte, prompt string) ([]*genai.Content, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported image type %q", mime)
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(image, mime),
		genai.NewPartFromText(prompt),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}
