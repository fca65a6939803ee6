package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	promptKey  = "settings/system_prompt.json"
	profileKey = "settings/user_profile.json"
	visionKey  = "settings/vision_settings.json"
)

// DefaultPrompt is written to the store when no prompt has been saved yet.
const DefaultPrompt = "You are a helpful, friendly, and concise voice assistant. " +
	"Respond to user queries in a natural, conversational manner. " +
	"Keep responses brief and to the point, as you're communicating via voice. " +
	"When providing information, focus on the most relevant details. " +
	"If you don't know something, admit it rather than making up an answer." +
	"\n\n" +
	"Through the webapp, you can receive and understand photographs and pictures." +
	"\n\n" +
	"When the user sends a message like '[silent]', '[no response]', or '[still waiting]', " +
	"it means they've gone quiet or haven't responded. " +
	"When you see these signals, continue the conversation naturally based on the previous topic and context. " +
	"Stay on topic, be helpful, and don't mention that they were silent - just carry on the conversation " +
	"as if you're gently following up."

// Profile is the durable user identity.
type Profile struct {
	Name        string         `json:"name"`
	Preferences map[string]any `json:"preferences"`
}

// VisionSettings gates image understanding.
type VisionSettings struct {
	Enabled bool `json:"enabled"`
}

type promptDoc struct {
	Prompt string `json:"prompt"`
}

// Settings reads and writes the prompt, profile and vision documents.
type Settings struct {
	store Store
}

// NewSettings wraps s with typed settings access.
func NewSettings(s Store) *Settings {
	return &Settings{store: s}
}

// LoadPrompt returns the stored prompt. A missing or blank prompt is replaced
// by DefaultPrompt, which is written back.
func (s *Settings) LoadPrompt(ctx context.Context) (string, error) {
	var doc promptDoc
	found, err := s.loadJSON(ctx, promptKey, &doc)
	if err != nil {
		return "", err
	}
	if found && strings.TrimSpace(doc.Prompt) != "" {
		return doc.Prompt, nil
	}
	if err := s.SavePrompt(ctx, DefaultPrompt); err != nil {
		return "", err
	}
	return DefaultPrompt, nil
}

// SavePrompt writes the instruction prompt.
func (s *Settings) SavePrompt(ctx context.Context, prompt string) error {
	return s.saveJSON(ctx, promptKey, promptDoc{Prompt: prompt})
}

// LoadProfile returns the stored profile, writing an empty one if missing.
func (s *Settings) LoadProfile(ctx context.Context) (Profile, error) {
	var p Profile
	found, err := s.loadJSON(ctx, profileKey, &p)
	if err != nil {
		return Profile{}, err
	}
	if p.Preferences == nil {
		p.Preferences = map[string]any{}
	}
	if !found {
		if err := s.SaveProfile(ctx, p); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

// SaveProfile writes the user profile.
func (s *Settings) SaveProfile(ctx context.Context, p Profile) error {
	if p.Preferences == nil {
		p.Preferences = map[string]any{}
	}
	return s.saveJSON(ctx, profileKey, p)
}

// LoadVision returns the stored vision settings, writing the disabled
// default if missing.
func (s *Settings) LoadVision(ctx context.Context) (VisionSettings, error) {
	var v VisionSettings
	found, err := s.loadJSON(ctx, visionKey, &v)
	if err != nil {
		return VisionSettings{}, err
	}
	if !found {
		if err := s.SaveVision(ctx, v); err != nil {
			return VisionSettings{}, err
		}
	}
	return v, nil
}

// SaveVision writes the vision settings.
func (s *Settings) SaveVision(ctx context.Context, v VisionSettings) error {
	return s.saveJSON(ctx, visionKey, v)
}

func (s *Settings) loadJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	return true, nil
}

func (s *Settings) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return s.store.Save(ctx, key, data)
}
