package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient synthesizes mp3 speech over the HTTP streaming endpoint.
type ElevenLabsClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	VoiceID    string
	ModelID    string
}

func NewElevenLabsClient(apiKey, voiceID string) *ElevenLabsClient {
	return &ElevenLabsClient{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    elevenLabsBaseURL,
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    "eleven_flash_v2_5",
	}
}

// Synthesize reads the full streamed response into one clip.
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text string) (Speech, error) {
	if e.APIKey == "" || e.VoiceID == "" {
		return Speech{}, fmt.Errorf("elevenlabs: api key or voice id missing")
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return Speech{}, fmt.Errorf("elevenlabs: base url: %w", err)
	}
	u.Path = "/v1/text-to-speech/" + e.VoiceID + "/stream"
	q := u.Query()
	q.Set("output_format", "mp3_44100_128")
	// lower streaming latency target (0..4 where lower is lower latency, may trade quality)
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": e.ModelID,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return Speech{}, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return Speech{}, fmt.Errorf("elevenlabs http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Speech{}, fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}
	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return Speech{}, fmt.Errorf("elevenlabs http read error: %w", err)
	}
	if len(clip) == 0 {
		return Speech{}, fmt.Errorf("elevenlabs: empty audio")
	}
	return Speech{Audio: clip, Format: "mp3"}, nil
}
