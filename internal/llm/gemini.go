package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yasirabd/suarasemar/internal/conversation"
)

// GeminiClient generates replies with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed LLM.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key missing")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, r Request) (Reply, error) {
	system, contents := toGenAI(r.Messages)
	if len(contents) == 0 {
		return Reply{}, fmt.Errorf("gemini: no user or assistant messages")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(r.Temperature)),
		SystemInstruction: system,
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Reply{}, fmt.Errorf("gemini generate: %w", err)
	}
	md := map[string]any{
		"provider":        "gemini",
		"model":           g.model,
		"processing_time": time.Since(start).Seconds(),
	}
	if u := resp.UsageMetadata; u != nil {
		md["prompt_tokens"] = int(u.PromptTokenCount)
		md["completion_tokens"] = int(u.CandidatesTokenCount)
		md["total_tokens"] = int(u.TotalTokenCount)
	}
	return Reply{Text: strings.TrimSpace(resp.Text()), Metadata: md}, nil
}

// toGenAI folds system messages into one system instruction, in order, and
// maps the dialogue onto user/model contents.
func toGenAI(msgs []conversation.Message) (*genai.Content, []*genai.Content) {
	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
		case conversation.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: system}, contents
}
